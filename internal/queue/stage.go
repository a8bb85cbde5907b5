// Package queue holds the pickup queue rules: preparation stages, ticket
// status, queue-number codes and the expiry/reminder policy. It has no I/O;
// the service package applies these rules to stored orders.
package queue

import (
	"errors"

	"github.com/brewqueue/api/internal/enum"
)

// ErrUnknownStage is returned by ParseStage for names outside the four stages.
var ErrUnknownStage = errors.New("unknown stage")

// Stage is a staff-driven preparation stage. The zero value means no stage
// flag is set yet. Stages are ordered, so a lower value after a higher one is
// a regression.
type Stage int

const (
	StageNone Stage = iota
	StageAccepted
	StageInProgress
	StageAlmostReady
	StageReadyForPickup
)

// Stages lists the settable stages in preparation order.
var Stages = []Stage{StageAccepted, StageInProgress, StageAlmostReady, StageReadyForPickup}

func (s Stage) String() string {
	switch s {
	case StageAccepted:
		return enum.StageAccepted
	case StageInProgress:
		return enum.StageInProgress
	case StageAlmostReady:
		return enum.StageAlmostReady
	case StageReadyForPickup:
		return enum.StageReadyForPickup
	}
	return ""
}

// ParseStage maps a stage name to its Stage. StageNone is not parseable:
// staff can only move an order into one of the four stages.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if s.String() == name {
			return s, nil
		}
	}
	return StageNone, ErrUnknownStage
}

// Flags is the boolean queue_status set stored on an order.
type Flags struct {
	Accepted       bool
	InProgress     bool
	AlmostReady    bool
	ReadyForPickup bool
	PickedUp       bool
}

// FlagsFor returns the flag set after moving to s: every stage flag is reset
// and only s is set. PickedUp is carried over unchanged.
func FlagsFor(s Stage, pickedUp bool) Flags {
	return Flags{
		Accepted:       s == StageAccepted,
		InProgress:     s == StageInProgress,
		AlmostReady:    s == StageAlmostReady,
		ReadyForPickup: s == StageReadyForPickup,
		PickedUp:       pickedUp,
	}
}

// Current returns the latest stage whose flag is set. Rows written before the
// reset-on-advance rule may have several flags set; the furthest one wins.
func (f Flags) Current() Stage {
	switch {
	case f.ReadyForPickup:
		return StageReadyForPickup
	case f.AlmostReady:
		return StageAlmostReady
	case f.InProgress:
		return StageInProgress
	case f.Accepted:
		return StageAccepted
	}
	return StageNone
}

// ActiveStages counts how many of the four stage flags are set.
func (f Flags) ActiveStages() int {
	n := 0
	for _, set := range []bool{f.Accepted, f.InProgress, f.AlmostReady, f.ReadyForPickup} {
		if set {
			n++
		}
	}
	return n
}

// IsRegression reports whether moving from the current flags to next goes
// back to an earlier stage.
func (f Flags) IsRegression(next Stage) bool {
	cur := f.Current()
	return cur != StageNone && next < cur
}

// SuggestedNotes are the canned customer-facing notes offered to staff when
// moving an order into each stage.
var SuggestedNotes = map[Stage][]string{
	StageAccepted: {
		"Order received and being processed.",
		"Please wait while we prepare your order.",
		"Your order has entered the queue.",
	},
	StageInProgress: {
		"Order is now being prepared.",
		"Our barista is working on your items.",
		"Preparing your food and drinks now.",
	},
	StageAlmostReady: {
		"Order is almost ready!",
		"Finalizing your order packaging.",
		"Your order will be ready soon.",
	},
	StageReadyForPickup: {
		"Your order is ready for pickup!",
		"Please come to the counter to collect.",
		"Order ready and waiting for you.",
	},
}
