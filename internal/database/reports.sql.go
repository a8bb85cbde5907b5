package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const queueStatsByDay = `-- name: QueueStatsByDay :many
SELECT
    (created_at AT TIME ZONE $3::text)::date AS day,
    COUNT(*) FILTER (WHERE queue_number_status = 'picked up')::bigint AS picked_up,
    COUNT(*) FILTER (WHERE queue_number_status = 'expired')::bigint AS expired,
    COUNT(*) FILTER (WHERE queue_number_status = 'waiting')::bigint AS waiting,
    COALESCE(SUM(amount) FILTER (WHERE queue_number_status = 'picked up'), 0)::numeric AS picked_up_revenue,
    COALESCE(SUM(amount) FILTER (WHERE queue_number_status = 'expired'), 0)::numeric AS expired_revenue
FROM transactions
WHERE created_at >= $1 AND created_at < $2
GROUP BY day
ORDER BY day`

type QueueStatsByDayParams struct {
	StartDate pgtype.Timestamptz `json:"start_date"`
	EndDate   pgtype.Timestamptz `json:"end_date"`
	TimeZone  string             `json:"time_zone"`
}

type QueueStatsByDayRow struct {
	Day             pgtype.Date    `json:"day"`
	PickedUp        int64          `json:"picked_up"`
	Expired         int64          `json:"expired"`
	Waiting         int64          `json:"waiting"`
	PickedUpRevenue pgtype.Numeric `json:"picked_up_revenue"`
	ExpiredRevenue  pgtype.Numeric `json:"expired_revenue"`
}

func (q *Queries) QueueStatsByDay(ctx context.Context, arg QueueStatsByDayParams) ([]QueueStatsByDayRow, error) {
	rows, err := q.db.Query(ctx, queueStatsByDay, arg.StartDate, arg.EndDate, arg.TimeZone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []QueueStatsByDayRow{}
	for rows.Next() {
		var i QueueStatsByDayRow
		if err := rows.Scan(
			&i.Day,
			&i.PickedUp,
			&i.Expired,
			&i.Waiting,
			&i.PickedUpRevenue,
			&i.ExpiredRevenue,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
