package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/enum"
	"github.com/brewqueue/api/internal/queue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Errors returned by the queue service.
var (
	ErrInvalidStage        = errors.New("invalid stage")
	ErrInvalidTicketStatus = errors.New("invalid queue_number_status")
	ErrOrderNotFound       = errors.New("order not found")
	ErrTerminal            = errors.New("order already picked up or expired")
	ErrNotWaiting          = errors.New("order is not waiting for pickup")
	ErrStatusConflict      = errors.New("order status changed concurrently")
	ErrStageRegression     = errors.New("cannot move order back to an earlier stage")
	ErrCodeMismatch        = errors.New("QR code mismatch, please scan the correct code")
	ErrAlreadyAssigned     = errors.New("queue number already assigned")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher fans queue events out to live staff screens. Publish must not block.
type Publisher interface {
	Publish(eventType string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) {}

// Publishers sends every event to each publisher in order.
type Publishers []Publisher

func (ps Publishers) Publish(eventType string, payload any) {
	for _, p := range ps {
		p.Publish(eventType, payload)
	}
}

// QueueEvent is the payload published for every queue change.
type QueueEvent struct {
	OrderID           string `json:"order_id"`
	Stage             string `json:"stage"`
	QueueNumber       string `json:"queue_number,omitempty"`
	QueueNumberStatus string `json:"queue_number_status"`
	UserName          string `json:"user_name"`
}

func eventFor(o database.Order) QueueEvent {
	return QueueEvent{
		OrderID:           o.OrderID,
		Stage:             OrderFlags(o).Current().String(),
		QueueNumber:       o.QueueNumber.String,
		QueueNumberStatus: o.QueueNumberStatus,
		UserName:          o.UserName,
	}
}

// QueueStore defines the DB methods needed to move orders through the queue.
// Satisfied by *database.Queries (and its WithTx variant).
type QueueStore interface {
	GetOrder(ctx context.Context, orderID string) (database.Order, error)
	UpdateOrderStage(ctx context.Context, arg database.UpdateOrderStageParams) (database.Order, error)
	SetOrderQueueNumber(ctx context.Context, arg database.SetOrderQueueNumberParams) (database.Order, error)
	UpdateTicketStatus(ctx context.Context, arg database.UpdateTicketStatusParams) (database.Order, error)
	UpsertQueueRecord(ctx context.Context, arg database.UpsertQueueRecordParams) (database.QueueRecord, error)
	NextQueueSequence(ctx context.Context, arg database.NextQueueSequenceParams) (int32, error)
}

// NewQueueStore creates a QueueStore from a DBTX (pool or tx).
type NewQueueStore func(db database.DBTX) QueueStore

// QueueOptions are the configurable queue behaviors.
type QueueOptions struct {
	Location *time.Location
	Hours    queue.Hours
	Format   queue.NumberFormat
	// RegenerateNumber issues a fresh number every time an order re-enters
	// ready_for_pickup instead of keeping the one it already has.
	RegenerateNumber bool
	// AllowRegression lets staff move an order back to an earlier stage.
	AllowRegression bool
	// RequireScanMatch makes ScanPickup reject codes other than the order ID.
	RequireScanMatch bool
}

// DefaultQueueOptions returns the production defaults in the given zone.
func DefaultQueueOptions(loc *time.Location) QueueOptions {
	return QueueOptions{
		Location:         loc,
		Hours:            queue.DefaultHours,
		Format:           queue.FormatSequence,
		AllowRegression:  true,
		RequireScanMatch: true,
	}
}

// QueueService applies staff actions to orders. Each call runs in one
// transaction that writes the order and its queue record together.
type QueueService struct {
	pool     TxBeginner
	newStore NewQueueStore
	opts     QueueOptions
	pub      Publisher
	now      func() time.Time
}

// NewQueueService creates a new QueueService. pub may be nil.
func NewQueueService(pool TxBeginner, newStore NewQueueStore, opts QueueOptions, pub Publisher) *QueueService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if pub == nil {
		pub = noopPublisher{}
	}
	return &QueueService{pool: pool, newStore: newStore, opts: opts, pub: pub, now: time.Now}
}

// Advance moves an order to the named stage. Entering ready_for_pickup also
// assigns a queue number and starts the pickup clock.
func (s *QueueService) Advance(ctx context.Context, orderID, stageName, note string) (database.Order, error) {
	stage, err := queue.ParseStage(stageName)
	if err != nil {
		return database.Order{}, ErrInvalidStage
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, status, err := loadOrder(ctx, store, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if status.IsTerminal() {
		return database.Order{}, ErrTerminal
	}

	flags := OrderFlags(order)
	if flags.IsRegression(stage) {
		if !s.opts.AllowRegression {
			return database.Order{}, ErrStageRegression
		}
		log.Printf("WARN: order %s moved back from %s to %s", orderID, flags.Current(), stage)
		if flags.ReadyForPickup && status == queue.TicketWaiting {
			log.Printf("WARN: order %s keeps its waiting ticket but will not expire until it is ready again", orderID)
		}
	}

	now := s.now()
	next := queue.FlagsFor(stage, order.PickedUp)
	customNote := pgtype.Text{}
	if note != "" {
		customNote = pgtype.Text{String: note, Valid: true}
	}

	updated, err := store.UpdateOrderStage(ctx, database.UpdateOrderStageParams{
		OrderID:        orderID,
		Accepted:       next.Accepted,
		InProgress:     next.InProgress,
		AlmostReady:    next.AlmostReady,
		ReadyForPickup: next.ReadyForPickup,
		CustomNote:     customNote,
		UpdatedAt:      now,
		ExpectedStatus: order.QueueNumberStatus,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update stage: %w", err)
	}

	assigned := false
	if stage == queue.StageReadyForPickup {
		number := updated.QueueNumber.String
		if s.opts.RegenerateNumber || number == "" {
			number, err = s.nextNumber(ctx, store, now)
			if err != nil {
				return database.Order{}, err
			}
			assigned = true
		}
		updated, err = s.setNumber(ctx, store, updated, number)
		if err != nil {
			return database.Order{}, err
		}
	}

	if err := upsertRecord(ctx, store, updated, now); err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.pub.Publish(enum.EventOrderUpdated, eventFor(updated))
	if assigned {
		s.pub.Publish(enum.EventQueueAssigned, eventFor(updated))
	}
	return updated, nil
}

// AssignQueueNumber gives an order without a number one based on its
// creation time and marks it waiting.
func (s *QueueService) AssignQueueNumber(ctx context.Context, orderID string) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, status, err := loadOrder(ctx, store, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if status.IsTerminal() {
		return database.Order{}, ErrTerminal
	}
	if order.QueueNumber.Valid && order.QueueNumber.String != "" {
		return database.Order{}, ErrAlreadyAssigned
	}

	number, err := s.nextNumber(ctx, store, order.CreatedAt)
	if err != nil {
		return database.Order{}, err
	}
	updated, err := s.setNumber(ctx, store, order, number)
	if err != nil {
		return database.Order{}, err
	}

	if err := upsertRecord(ctx, store, updated, s.now()); err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.pub.Publish(enum.EventQueueAssigned, eventFor(updated))
	return updated, nil
}

// ConfirmPickup marks a waiting order as picked up.
func (s *QueueService) ConfirmPickup(ctx context.Context, orderID string) (database.Order, error) {
	return s.finish(ctx, orderID, queue.TicketPickedUp)
}

// ScanPickup confirms pickup from a scanned QR code. The code must be the
// order ID unless scan matching is disabled.
func (s *QueueService) ScanPickup(ctx context.Context, orderID, code string) (database.Order, error) {
	if s.opts.RequireScanMatch && code != orderID {
		return database.Order{}, ErrCodeMismatch
	}
	return s.finish(ctx, orderID, queue.TicketPickedUp)
}

// SetTicketStatus is the staff override that closes a waiting ticket as
// picked up or expired.
func (s *QueueService) SetTicketStatus(ctx context.Context, orderID, status string) (database.Order, error) {
	target, err := queue.ParseTicketStatus(status)
	if err != nil || !target.IsTerminal() {
		return database.Order{}, ErrInvalidTicketStatus
	}
	return s.finish(ctx, orderID, target)
}

// finish moves a waiting ticket to a terminal status.
func (s *QueueService) finish(ctx context.Context, orderID string, target queue.TicketStatus) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	_, status, err := loadOrder(ctx, store, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if !status.CanTransition(target) {
		return database.Order{}, ErrNotWaiting
	}

	now := s.now()
	updated, err := closeTicket(ctx, store, orderID, target, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, err
	}

	if err := upsertRecord(ctx, store, updated, now); err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	event := enum.EventQueuePickedUp
	if target == queue.TicketExpired {
		event = enum.EventQueueExpired
	}
	s.pub.Publish(event, eventFor(updated))
	return updated, nil
}

// nextNumber builds a queue number for t in the configured zone.
func (s *QueueService) nextNumber(ctx context.Context, store QueueStore, t time.Time) (string, error) {
	local := t.In(s.opts.Location)
	if s.opts.Format == queue.FormatMinute {
		return queue.MinuteNumber(s.opts.Hours, local), nil
	}

	letter := s.opts.Hours.Letter(local)
	seq, err := store.NextQueueSequence(ctx, database.NextQueueSequenceParams{
		Day:    pgtype.Date{Time: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), Valid: true},
		Letter: letter,
	})
	if err != nil {
		return "", fmt.Errorf("next queue sequence: %w", err)
	}
	return queue.SequenceNumber(letter, seq, local), nil
}

func (s *QueueService) setNumber(ctx context.Context, store QueueStore, order database.Order, number string) (database.Order, error) {
	status, err := queue.ParseTicketStatus(order.QueueNumberStatus)
	if err != nil {
		return database.Order{}, fmt.Errorf("order %s: %w", order.OrderID, err)
	}
	if !status.CanTransition(queue.TicketWaiting) {
		return database.Order{}, ErrTerminal
	}

	updated, err := store.SetOrderQueueNumber(ctx, database.SetOrderQueueNumberParams{
		OrderID:        order.OrderID,
		QueueNumber:    number,
		ExpectedStatus: order.QueueNumberStatus,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("set queue number: %w", err)
	}
	return updated, nil
}

// --- Helpers shared with the sweep ---

type ticketCloser interface {
	UpdateTicketStatus(ctx context.Context, arg database.UpdateTicketStatusParams) (database.Order, error)
}

type recordUpserter interface {
	UpsertQueueRecord(ctx context.Context, arg database.UpsertQueueRecordParams) (database.QueueRecord, error)
}

// closeTicket conditionally moves a waiting ticket to target. pgx.ErrNoRows
// means the row was no longer waiting.
func closeTicket(ctx context.Context, store ticketCloser, orderID string, target queue.TicketStatus, now time.Time) (database.Order, error) {
	pickedUp := pgtype.Bool{}
	if target == queue.TicketPickedUp {
		pickedUp = pgtype.Bool{Bool: true, Valid: true}
	}
	return store.UpdateTicketStatus(ctx, database.UpdateTicketStatusParams{
		OrderID:        orderID,
		Status:         target.String(),
		ExpectedStatus: queue.TicketWaiting.String(),
		PickedUp:       pickedUp,
		UpdatedAt:      pgtype.Timestamptz{Time: now, Valid: true},
	})
}

// upsertRecord mirrors the order's queue fields into its queue record.
func upsertRecord(ctx context.Context, store recordUpserter, o database.Order, now time.Time) error {
	updatedAt := now
	if o.UpdatedAt.Valid {
		updatedAt = o.UpdatedAt.Time
	}
	_, err := store.UpsertQueueRecord(ctx, database.UpsertQueueRecordParams{
		OrderID:           o.OrderID,
		Stage:             OrderFlags(o).Current().String(),
		QueueNumber:       o.QueueNumber,
		QueueNumberStatus: o.QueueNumberStatus,
		UserID:            o.UserID,
		UserName:          o.UserName,
		UpdatedAt:         updatedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert queue record: %w", err)
	}
	return nil
}

func loadOrder(ctx context.Context, store QueueStore, orderID string) (database.Order, queue.TicketStatus, error) {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, queue.TicketUnset, ErrOrderNotFound
		}
		return database.Order{}, queue.TicketUnset, fmt.Errorf("get order: %w", err)
	}
	status, err := queue.ParseTicketStatus(order.QueueNumberStatus)
	if err != nil {
		return database.Order{}, queue.TicketUnset, fmt.Errorf("order %s: %w", orderID, err)
	}
	return order, status, nil
}

// OrderFlags reads the stage flags of a stored order.
func OrderFlags(o database.Order) queue.Flags {
	return queue.Flags{
		Accepted:       o.Accepted,
		InProgress:     o.InProgress,
		AlmostReady:    o.AlmostReady,
		ReadyForPickup: o.ReadyForPickup,
		PickedUp:       o.PickedUp,
	}
}
