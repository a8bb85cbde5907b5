package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/brewqueue/api/internal/enum"
)

// OutOfHoursLetter is the code for tickets issued outside operating hours.
const OutOfHoursLetter = "XX"

// ErrUnknownNumberFormat is returned by ParseNumberFormat.
var ErrUnknownNumberFormat = errors.New("unknown queue number format")

// Hours is the operating window, both ends inclusive, in local hours.
type Hours struct {
	Open  int
	Close int
}

// DefaultHours is 07:00 through 21:59.
var DefaultHours = Hours{Open: 7, Close: 21}

// Letter maps the hour of t to a doubled letter: Open → "AA", Open+1 → "BB".
// Hours outside the window map to "XX". t must already be in local time.
func (h Hours) Letter(t time.Time) string {
	hour := t.Hour()
	if hour < h.Open || hour > h.Close {
		return OutOfHoursLetter
	}
	l := string(rune('A' + hour - h.Open))
	return l + l
}

// NumberFormat selects how the part after the letter is built.
type NumberFormat int

const (
	// FormatSequence appends a per-day, per-letter sequence and the date:
	// "AA3_27072025".
	FormatSequence NumberFormat = iota
	// FormatMinute appends the two-digit minute: "AA07".
	FormatMinute
)

func (f NumberFormat) String() string {
	if f == FormatMinute {
		return enum.QueueNumberFormatMinute
	}
	return enum.QueueNumberFormatSequence
}

// ParseNumberFormat maps a config value to a NumberFormat.
func ParseNumberFormat(s string) (NumberFormat, error) {
	switch s {
	case enum.QueueNumberFormatSequence, "":
		return FormatSequence, nil
	case enum.QueueNumberFormatMinute:
		return FormatMinute, nil
	}
	return FormatSequence, fmt.Errorf("%w: %q", ErrUnknownNumberFormat, s)
}

// MinuteNumber builds the short form: letter plus zero-padded minute.
func MinuteNumber(h Hours, t time.Time) string {
	return fmt.Sprintf("%s%02d", h.Letter(t), t.Minute())
}

// SequenceNumber builds the disambiguated form from a letter group, its
// 1-based sequence for the day, and the local date.
func SequenceNumber(letter string, seq int32, t time.Time) string {
	return fmt.Sprintf("%s%d_%s", letter, seq, DateCode(t))
}

// DateCode formats t as DDMMYYYY.
func DateCode(t time.Time) string {
	return t.Format("02012006")
}
