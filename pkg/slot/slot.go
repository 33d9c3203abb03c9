// Package slot decodes the encodings a doctor's bookable time slot may be
// stored in and compares them against a requested appointment time.
//
// Stored slots come in four shapes:
//
//	native datetime          (Timestamp)
//	"YYYY-MM-DD-HH:MM"       (System)
//	"YYYY-MM-DD at HH:MM"    (Display)
//	"HH:MM"                  (Legacy, implicitly today)
//
// Anything else decodes as Malformed and keeps its raw value so that a
// round trip through the store never rewrites data it does not understand.
package slot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	displaySeparator = " at "
	segmentSeparator = "-"
)

var ErrMalformed = errors.New("malformed slot")

type Kind int

const (
	Malformed Kind = iota
	Timestamp
	System
	Display
	Legacy
)

func (k Kind) String() string {
	switch k {
	case Timestamp:
		return "timestamp"
	case System:
		return "system"
	case Display:
		return "display"
	case Legacy:
		return "legacy"
	default:
		return "malformed"
	}
}

// Slot is a decoded slot value. The zero value is a Malformed slot.
type Slot struct {
	kind  Kind
	date  string
	clock string
	at    time.Time
	raw   string

	// original encoding of a non-string malformed value
	rawType bsontype.Type
	rawData []byte
}

// NewSystem builds a slot in the "YYYY-MM-DD-HH:MM" form.
func NewSystem(date, clock string) (Slot, error) {
	if !validDate(date) || !validClock(clock) {
		return Slot{}, fmt.Errorf("%w: date=%q time=%q", ErrMalformed, date, clock)
	}
	return Slot{kind: System, date: date, clock: clock, raw: date + segmentSeparator + clock}, nil
}

// FromTime builds a native timestamp slot. Precision is truncated to the
// millisecond, matching what the store keeps.
func FromTime(t time.Time) Slot {
	return Slot{kind: Timestamp, at: t.UTC().Truncate(time.Millisecond)}
}

// Parse decodes a stored string slot. It never fails; unrecognized text
// becomes a Malformed slot carrying the original string.
func Parse(raw string) Slot {
	s := Slot{raw: raw}
	text := strings.TrimSpace(raw)

	switch {
	case strings.Contains(text, displaySeparator):
		date, clock, _ := strings.Cut(text, displaySeparator)
		date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
		if validDate(date) && validClock(clock) {
			s.kind, s.date, s.clock = Display, date, clock
		}
	case !strings.Contains(text, segmentSeparator):
		if validClock(text) {
			s.kind, s.clock = Legacy, text
		}
	default:
		date, clock, ok := splitSystem(text)
		if ok && validDate(date) && validClock(clock) {
			s.kind, s.date, s.clock = System, date, clock
		}
	}
	return s
}

func (s Slot) Kind() Kind { return s.kind }

func (s Slot) IsMalformed() bool { return s.kind == Malformed }

// Date returns the calendar date for dated kinds and "" otherwise.
// Timestamps are reported in UTC; use Codec for a zone-aware view.
func (s Slot) Date() string {
	if s.kind == Timestamp {
		return s.at.Format(DateLayout)
	}
	return s.date
}

func (s Slot) Clock() string {
	if s.kind == Timestamp {
		return s.at.Format(ClockLayout)
	}
	return s.clock
}

func (s Slot) Time() time.Time { return s.at }

// String returns the stored form.
func (s Slot) String() string {
	if s.kind == Timestamp {
		return s.at.Format(time.RFC3339)
	}
	return s.raw
}

// Equal reports whether two slots have the same stored form.
func (s Slot) Equal(o Slot) bool {
	if s.kind == Timestamp || o.kind == Timestamp {
		return s.kind == o.kind && s.at.Equal(o.at)
	}
	return s.raw == o.raw
}

// splitSystem treats the first three dash segments as the date and the
// fourth as the time. Anything after the fourth segment is ignored.
func splitSystem(text string) (string, string, bool) {
	parts := strings.Split(text, segmentSeparator)
	if len(parts) < 4 {
		return "", "", false
	}
	return strings.Join(parts[:3], segmentSeparator), parts[3], true
}

func validDate(date string) bool {
	if len(date) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

func validClock(clock string) bool {
	if len(clock) != len(ClockLayout) {
		return false
	}
	_, err := time.Parse(ClockLayout, clock)
	return err == nil
}
