package queue

import (
	"fmt"
	"time"

	"github.com/brewqueue/api/internal/enum"
)

// ReminderPolicy decides on which sweep runs a waiting customer is reminded.
type ReminderPolicy int

const (
	// ReminderWindow fires when minutes-left modulo the interval is at most
	// one, so a sweep that drifts by a minute still sends the reminder.
	ReminderWindow ReminderPolicy = iota
	// ReminderExact fires only when elapsed minutes are an exact multiple of
	// the interval.
	ReminderExact
)

// ParseReminderPolicy maps a config value to a ReminderPolicy.
func ParseReminderPolicy(s string) (ReminderPolicy, error) {
	switch s {
	case enum.NotifyPolicyWindow, "":
		return ReminderWindow, nil
	case enum.NotifyPolicyExact:
		return ReminderExact, nil
	}
	return ReminderWindow, fmt.Errorf("unknown notify policy %q", s)
}

// Policy holds the expiry threshold and reminder cadence of the sweep.
type Policy struct {
	MaxWait        time.Duration
	NotifyInterval time.Duration
	Reminder       ReminderPolicy
}

// DefaultPolicy expires after 30 minutes with reminders every 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		MaxWait:        30 * time.Minute,
		NotifyInterval: 5 * time.Minute,
		Reminder:       ReminderWindow,
	}
}

// Decision is what the sweep should do with one waiting order.
type Decision int

const (
	DecisionWait Decision = iota
	DecisionRemind
	DecisionExpire
	DecisionSkipPickedUp
	DecisionSkipNoTimestamp
)

func (d Decision) String() string {
	switch d {
	case DecisionRemind:
		return "remind"
	case DecisionExpire:
		return "expire"
	case DecisionSkipPickedUp:
		return "skip_picked_up"
	case DecisionSkipNoTimestamp:
		return "skip_no_timestamp"
	}
	return "wait"
}

// Verdict is the outcome of Evaluate. Elapsed and MinutesLeft are whole
// minutes; both are zero for skip decisions.
type Verdict struct {
	Decision    Decision
	Elapsed     int
	MinutesLeft int
}

// Evaluate applies the policy to one waiting order. A zero updatedAt means
// the timestamp is missing and the order is skipped untouched.
func (p Policy) Evaluate(pickedUp bool, updatedAt, now time.Time) Verdict {
	if pickedUp {
		return Verdict{Decision: DecisionSkipPickedUp}
	}
	if updatedAt.IsZero() {
		return Verdict{Decision: DecisionSkipNoTimestamp}
	}

	elapsed := int(now.Sub(updatedAt) / time.Minute)
	maxWait := int(p.MaxWait / time.Minute)
	if elapsed >= maxWait {
		return Verdict{Decision: DecisionExpire, Elapsed: elapsed}
	}

	left := maxWait - elapsed
	v := Verdict{Decision: DecisionWait, Elapsed: elapsed, MinutesLeft: left}
	if p.shouldRemind(elapsed, left) {
		v.Decision = DecisionRemind
	}
	return v
}

func (p Policy) shouldRemind(elapsed, left int) bool {
	interval := int(p.NotifyInterval / time.Minute)
	if interval <= 0 {
		return false
	}
	if p.Reminder == ReminderExact {
		return elapsed%interval == 0
	}
	return left%interval <= 1
}
