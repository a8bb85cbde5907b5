package enum

// ── Queue stages (staff-driven preparation flags on transactions) ──

const (
	StageAccepted       = "accepted"
	StageInProgress     = "in_progress"
	StageAlmostReady    = "almost_ready"
	StageReadyForPickup = "ready_for_pickup"
)

// ── Ticket status (CHECK constrained in DB) ──

const (
	TicketStatusUnset    = ""
	TicketStatusWaiting  = "waiting"
	TicketStatusPickedUp = "picked up"
	TicketStatusExpired  = "expired"
)

// ── Admin roles (CHECK constrained in DB) ──

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// ── Payment status copied from checkout ──

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

// ── Configurable behavior labels ──

const (
	QueueNumberFormatMinute   = "minute"
	QueueNumberFormatSequence = "sequence"
)

const (
	NotifyPolicyWindow = "window"
	NotifyPolicyExact  = "exact"
)

// ── WebSocket event types ──

const (
	EventOrderUpdated   = "order.updated"
	EventQueueAssigned  = "queue.assigned"
	EventQueuePickedUp  = "queue.picked_up"
	EventQueueExpired   = "queue.expired"
	EventQueueSweepDone = "queue.sweep_done"
	EventQueueSnapshot  = "queue.snapshot"
)
