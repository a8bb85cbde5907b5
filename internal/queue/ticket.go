package queue

import (
	"errors"

	"github.com/brewqueue/api/internal/enum"
)

// ErrUnknownTicketStatus is returned for status strings outside the enum.
var ErrUnknownTicketStatus = errors.New("unknown ticket status")

// TicketStatus is the lifecycle of the pickup ticket, independent of the
// preparation stage.
type TicketStatus int

const (
	TicketUnset TicketStatus = iota
	TicketWaiting
	TicketPickedUp
	TicketExpired
)

func (t TicketStatus) String() string {
	switch t {
	case TicketWaiting:
		return enum.TicketStatusWaiting
	case TicketPickedUp:
		return enum.TicketStatusPickedUp
	case TicketExpired:
		return enum.TicketStatusExpired
	}
	return enum.TicketStatusUnset
}

// ParseTicketStatus maps the stored string to a TicketStatus. The empty
// string is TicketUnset.
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch s {
	case enum.TicketStatusUnset:
		return TicketUnset, nil
	case enum.TicketStatusWaiting:
		return TicketWaiting, nil
	case enum.TicketStatusPickedUp:
		return TicketPickedUp, nil
	case enum.TicketStatusExpired:
		return TicketExpired, nil
	}
	return TicketUnset, ErrUnknownTicketStatus
}

// IsTerminal reports whether no further transition may act on the ticket.
func (t TicketStatus) IsTerminal() bool {
	return t == TicketPickedUp || t == TicketExpired
}

// ticketTransitions is keyed by current status.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketUnset:   {TicketWaiting},
	TicketWaiting: {TicketWaiting, TicketPickedUp, TicketExpired},
}

// CanTransition reports whether the ticket may move from t to next.
// Waiting to waiting is allowed so a regenerated number can be re-armed.
func (t TicketStatus) CanTransition(next TicketStatus) bool {
	for _, s := range ticketTransitions[t] {
		if s == next {
			return true
		}
	}
	return false
}
