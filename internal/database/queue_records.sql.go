package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertQueueRecord = `-- name: UpsertQueueRecord :one
INSERT INTO queue_records (
    order_id, stage, queue_number, queue_number_status, user_id, user_name, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (order_id) DO UPDATE
SET stage = EXCLUDED.stage,
    queue_number = EXCLUDED.queue_number,
    queue_number_status = EXCLUDED.queue_number_status,
    user_id = EXCLUDED.user_id,
    user_name = EXCLUDED.user_name,
    updated_at = EXCLUDED.updated_at
RETURNING order_id, stage, queue_number, queue_number_status, user_id, user_name, updated_at`

type UpsertQueueRecordParams struct {
	OrderID           string      `json:"order_id"`
	Stage             string      `json:"stage"`
	QueueNumber       pgtype.Text `json:"queue_number"`
	QueueNumberStatus string      `json:"queue_number_status"`
	UserID            string      `json:"user_id"`
	UserName          string      `json:"user_name"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (q *Queries) UpsertQueueRecord(ctx context.Context, arg UpsertQueueRecordParams) (QueueRecord, error) {
	row := q.db.QueryRow(ctx, upsertQueueRecord,
		arg.OrderID,
		arg.Stage,
		arg.QueueNumber,
		arg.QueueNumberStatus,
		arg.UserID,
		arg.UserName,
		arg.UpdatedAt,
	)
	var i QueueRecord
	err := row.Scan(
		&i.OrderID,
		&i.Stage,
		&i.QueueNumber,
		&i.QueueNumberStatus,
		&i.UserID,
		&i.UserName,
		&i.UpdatedAt,
	)
	return i, err
}

const listQueueRecordsByStatus = `-- name: ListQueueRecordsByStatus :many
SELECT order_id, stage, queue_number, queue_number_status, user_id, user_name, updated_at
FROM queue_records
WHERE queue_number_status = $1
ORDER BY updated_at ASC`

func (q *Queries) ListQueueRecordsByStatus(ctx context.Context, status string) ([]QueueRecord, error) {
	rows, err := q.db.Query(ctx, listQueueRecordsByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []QueueRecord{}
	for rows.Next() {
		var i QueueRecord
		if err := rows.Scan(
			&i.OrderID,
			&i.Stage,
			&i.QueueNumber,
			&i.QueueNumberStatus,
			&i.UserID,
			&i.UserName,
			&i.UpdatedAt,
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

const nextQueueSequence = `-- name: NextQueueSequence :one
INSERT INTO queue_counters (day, letter, last)
VALUES ($1, $2, 1)
ON CONFLICT (day, letter) DO UPDATE
SET last = queue_counters.last + 1
RETURNING last`

type NextQueueSequenceParams struct {
	Day    pgtype.Date `json:"day"`
	Letter string      `json:"letter"`
}

// NextQueueSequence atomically increments and returns the ticket sequence for
// one letter group on one day. The first call of a day returns 1.
func (q *Queries) NextQueueSequence(ctx context.Context, arg NextQueueSequenceParams) (int32, error) {
	row := q.db.QueryRow(ctx, nextQueueSequence, arg.Day, arg.Letter)
	var last int32
	err := row.Scan(&last)
	return last, err
}
