package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/enum"
	"github.com/brewqueue/api/internal/notify"
	"github.com/brewqueue/api/internal/queue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// SweepStore defines the DB methods needed by the expiry sweep.
// Satisfied by *database.Queries (and its WithTx variant).
type SweepStore interface {
	ListWaitingForPickup(ctx context.Context) ([]database.Order, error)
	GetCustomerDeviceToken(ctx context.Context, userID string) (pgtype.Text, error)
	ClearCustomerDeviceToken(ctx context.Context, userID string) (database.Customer, error)
	UpdateTicketStatus(ctx context.Context, arg database.UpdateTicketStatusParams) (database.Order, error)
	UpsertQueueRecord(ctx context.Context, arg database.UpsertQueueRecordParams) (database.QueueRecord, error)
}

// NewSweepStore creates a SweepStore from a DBTX (pool or tx).
type NewSweepStore func(db database.DBTX) SweepStore

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Scanned      int `json:"scanned"`
	Expired      int `json:"expired"`
	Reminded     int `json:"reminded"`
	Skipped      int `json:"skipped"`
	NotifyErrors int `json:"notify_errors"`
}

// Sweeper expires orders left waiting past the policy's MaxWait and reminds
// customers as the deadline approaches.
type Sweeper struct {
	store    SweepStore
	pool     TxBeginner
	newStore NewSweepStore
	sender   notify.Sender
	pub      Publisher
	policy   queue.Policy
	now      func() time.Time
}

// NewSweeper creates a Sweeper. store serves reads outside the expiry
// transaction. pub may be nil.
func NewSweeper(store SweepStore, pool TxBeginner, newStore NewSweepStore, sender notify.Sender, pub Publisher, policy queue.Policy) *Sweeper {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Sweeper{
		store:    store,
		pool:     pool,
		newStore: newStore,
		sender:   sender,
		pub:      pub,
		policy:   policy,
		now:      time.Now,
	}
}

// Start runs the sweep every interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	log.Printf("queue sweep started (every %s, max wait %s)", interval, s.policy.MaxWait)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("queue sweep stopped")
			return
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				log.Printf("ERROR: queue sweep: %v", err)
				continue
			}
			if res.Expired > 0 || res.Reminded > 0 {
				log.Printf("queue sweep: scanned=%d expired=%d reminded=%d skipped=%d notify_errors=%d",
					res.Scanned, res.Expired, res.Reminded, res.Skipped, res.NotifyErrors)
			}
		}
	}
}

// RunOnce evaluates every waiting order once. Reminders go out as orders are
// evaluated; expiries are committed together in one transaction and their
// notices are sent after the commit.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()

	orders, err := s.store.ListWaitingForPickup(ctx)
	if err != nil {
		return res, fmt.Errorf("list waiting orders: %w", err)
	}
	res.Scanned = len(orders)

	var stale []database.Order
	elapsed := make(map[string]int)
	for _, o := range orders {
		updatedAt := time.Time{}
		if o.UpdatedAt.Valid {
			updatedAt = o.UpdatedAt.Time
		}

		v := s.policy.Evaluate(o.PickedUp, updatedAt, now)
		switch v.Decision {
		case queue.DecisionSkipPickedUp:
			res.Skipped++
		case queue.DecisionSkipNoTimestamp:
			log.Printf("WARN: order %s has no updated_at, skipping", o.OrderID)
			res.Skipped++
		case queue.DecisionExpire:
			stale = append(stale, o)
			elapsed[o.OrderID] = v.Elapsed
		case queue.DecisionRemind:
			res.Reminded++
			if err := s.notify(ctx, o, func(token string) notify.Message {
				return notify.ReminderMessage(token, o.OrderID, v.MinutesLeft)
			}); err != nil {
				res.NotifyErrors++
			}
		}
	}

	if len(stale) > 0 {
		expired, err := s.expire(ctx, stale, now)
		if err != nil {
			return res, err
		}
		res.Expired = len(expired)

		for _, o := range expired {
			log.Printf("order %s expired after %d minutes", o.OrderID, elapsed[o.OrderID])
			if err := s.notify(ctx, o, func(token string) notify.Message {
				return notify.ExpiredMessage(token, o.OrderID)
			}); err != nil {
				res.NotifyErrors++
			}
			s.pub.Publish(enum.EventQueueExpired, eventFor(o))
		}
	}

	// Published on every completed run, including ones that only reminded.
	s.pub.Publish(enum.EventQueueSweepDone, res)
	return res, nil
}

// expire marks orders expired in a single transaction. Orders that stopped
// waiting since they were listed are left alone.
func (s *Sweeper) expire(ctx context.Context, orders []database.Order, now time.Time) ([]database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	var expired []database.Order
	for _, o := range orders {
		updated, err := closeTicket(ctx, store, o.OrderID, queue.TicketExpired, now)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Printf("WARN: order %s no longer waiting, not expired", o.OrderID)
				continue
			}
			return nil, fmt.Errorf("expire order %s: %w", o.OrderID, err)
		}
		if err := upsertRecord(ctx, store, updated, now); err != nil {
			return nil, err
		}
		expired = append(expired, updated)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return expired, nil
}

// notify sends one message to the order's customer. A customer without a
// registered device is skipped silently.
func (s *Sweeper) notify(ctx context.Context, o database.Order, build func(token string) notify.Message) error {
	token, err := s.store.GetCustomerDeviceToken(ctx, o.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		log.Printf("ERROR: device token for order %s: %v", o.OrderID, err)
		return err
	}
	if !token.Valid || token.String == "" {
		return nil
	}

	if err := s.sender.Send(ctx, build(token.String)); err != nil {
		if errors.Is(err, notify.ErrUnregistered) {
			log.Printf("WARN: device of %s is unregistered, forgetting it", o.UserID)
			if _, cerr := s.store.ClearCustomerDeviceToken(ctx, o.UserID); cerr != nil {
				log.Printf("ERROR: forget device of %s: %v", o.UserID, cerr)
			}
		}
		log.Printf("ERROR: notify order %s: %v", o.OrderID, err)
		return err
	}
	return nil
}
