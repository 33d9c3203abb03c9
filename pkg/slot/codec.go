package slot

import (
	"fmt"
	"strings"
	"time"
)

// Request is a normalized requested appointment time.
type Request struct {
	Format Kind
	Date   string
	Clock  string
	Text   string
}

// BookingFields returns the time and date a booking record stores for this
// request. Dated requests are re-derived from their parsed parts; legacy
// requests keep the caller's literal text and carry no date.
func (r Request) BookingFields() (clock string, date string) {
	if r.Format == Legacy {
		return r.Text, ""
	}
	return r.Clock, r.Date
}

// Key is the canonical system-format form of the request.
func (r Request) Key() string {
	return r.Date + segmentSeparator + r.Clock
}

// Codec anchors slot comparisons to a time zone and a clock. Legacy values
// have no date of their own and are read as "today" in that zone.
type Codec struct {
	loc *time.Location
	now func() time.Time
}

func NewCodec(loc *time.Location, now func() time.Time) *Codec {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{loc: loc, now: now}
}

func (c *Codec) Location() *time.Location { return c.loc }

func (c *Codec) Now() time.Time { return c.now().In(c.loc) }

func (c *Codec) Today() string { return c.Now().Format(DateLayout) }

// ParseRequest recognizes the display, system and legacy request forms.
// A request containing " at " is display; one without any dash is legacy;
// everything else is read as system.
func (c *Codec) ParseRequest(text string) (Request, error) {
	trimmed := strings.TrimSpace(text)
	req := Request{Text: text}

	switch {
	case strings.Contains(trimmed, displaySeparator):
		date, clock, _ := strings.Cut(trimmed, displaySeparator)
		req.Format, req.Date, req.Clock = Display, strings.TrimSpace(date), strings.TrimSpace(clock)
	case !strings.Contains(trimmed, segmentSeparator):
		req.Format, req.Date, req.Clock = Legacy, c.Today(), trimmed
	default:
		date, clock, ok := splitSystem(trimmed)
		if !ok {
			return Request{}, fmt.Errorf("%w: request %q", ErrMalformed, text)
		}
		req.Format, req.Date, req.Clock = System, date, clock
	}

	if !validDate(req.Date) || !validClock(req.Clock) {
		return Request{}, fmt.Errorf("%w: request %q", ErrMalformed, text)
	}
	return req, nil
}

// Match reports whether a stored slot denotes the requested date and time.
// Malformed slots never match and return ErrMalformed so scans can count them.
func (c *Codec) Match(s Slot, req Request) (bool, error) {
	switch s.kind {
	case Timestamp:
		t := s.at.In(c.loc)
		return t.Format(DateLayout) == req.Date && t.Format(ClockLayout) == req.Clock, nil
	case System, Display:
		return s.date == req.Date && s.clock == req.Clock, nil
	case Legacy:
		return s.clock == req.Clock && req.Date == c.Today(), nil
	default:
		return false, fmt.Errorf("%w: stored value %q", ErrMalformed, s.String())
	}
}

// Find returns the index of the first slot matching req, or -1, along with
// the number of malformed entries skipped on the way.
func (c *Codec) Find(slots []Slot, req Request) (int, int) {
	skipped := 0
	for i, s := range slots {
		ok, err := c.Match(s, req)
		if err != nil {
			skipped++
			continue
		}
		if ok {
			return i, skipped
		}
	}
	return -1, skipped
}

// Display renders a slot as "YYYY-MM-DD at HH:MM". Malformed values are
// returned verbatim.
func (c *Codec) Display(s Slot) string {
	date, clock, ok := c.parts(s)
	if !ok {
		return s.String()
	}
	return date + displaySeparator + clock
}

// Key renders a slot in canonical "YYYY-MM-DD-HH:MM" form. Two slots with
// the same key denote the same bookable time.
func (c *Codec) Key(s Slot) string {
	date, clock, ok := c.parts(s)
	if !ok {
		return s.String()
	}
	return date + segmentSeparator + clock
}

func (c *Codec) parts(s Slot) (string, string, bool) {
	switch s.kind {
	case Timestamp:
		t := s.at.In(c.loc)
		return t.Format(DateLayout), t.Format(ClockLayout), true
	case System, Display:
		return s.date, s.clock, true
	case Legacy:
		return c.Today(), s.clock, true
	default:
		return "", "", false
	}
}
