// Package bucket assigns timestamps to weekly and monthly reporting periods.
//
// Every timestamp is first converted to the civil date of a fixed reporting
// timezone, so broadcast and social events from the same calendar day always
// share a bucket.
package bucket

import (
	"fmt"
	"time"

	_ "time/tzdata"
)

// DefaultTimezone is the reporting timezone of the monitored media.
const DefaultTimezone = "America/Lima"

const dateLayout = "2006-01-02"

// Bucketer converts timestamps to civil dates in a reporting timezone.
type Bucketer struct {
	loc *time.Location
}

// New returns a Bucketer for loc. A nil loc means UTC.
func New(loc *time.Location) Bucketer {
	if loc == nil {
		loc = time.UTC
	}
	return Bucketer{loc: loc}
}

// NewFor loads the named timezone.
func NewFor(name string) (Bucketer, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Bucketer{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the reporting timezone.
func (b Bucketer) Location() *time.Location {
	if b.loc == nil {
		return time.UTC
	}
	return b.loc
}

// Date returns the civil date of t in the reporting timezone, as midnight UTC.
func (b Bucketer) Date(t time.Time) time.Time {
	y, m, d := t.In(b.Location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Week returns the week bucket of t.
func (b Bucketer) Week(t time.Time) Week {
	return WeekOf(b.Date(t))
}

// Month returns the month bucket of t.
func (b Bucketer) Month(t time.Time) Month {
	d := b.Date(t)
	return Month{Year: d.Year(), Month: d.Month()}
}

// Week is a reporting week. It ends on its anchor Friday: a date belongs to
// the week of the same or next Friday, never a prior one.
type Week struct {
	Friday time.Time
}

// WeekOf returns the week containing the civil date d.
func WeekOf(d time.Time) Week {
	return Week{Friday: Friday(d)}
}

// Friday returns d moved forward to the same or next Friday:
// d + ((4 - weekday) mod 7) days with Monday as weekday 0.
func Friday(d time.Time) time.Time {
	y, m, day := d.Date()
	d = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	mondayZero := (int(d.Weekday()) + 6) % 7
	offset := ((4-mondayZero)%7 + 7) % 7
	return d.AddDate(0, 0, offset)
}

// ISO returns the ISO year and week number of the anchor Friday.
func (w Week) ISO() (year, week int) {
	return w.Friday.ISOWeek()
}

// Label renders the anchor Friday as YYYY-MM-DD. Labels sort chronologically.
func (w Week) Label() string {
	return w.Friday.Format(dateLayout)
}

// String renders the ISO week of the anchor Friday, so a Saturday or Sunday
// shows the ISO week after its own.
func (w Week) String() string {
	y, n := w.ISO()
	return fmt.Sprintf("%04d-W%02d", y, n)
}

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// Label renders the month as YYYY-MM. Labels sort chronologically.
func (m Month) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Name renders the month with its Spanish name, e.g. "enero 2024".
func (m Month) Name() string {
	if m.Month < time.January || m.Month > time.December {
		return m.Label()
	}
	return fmt.Sprintf("%s %d", monthNames[m.Month-1], m.Year)
}

func (m Month) String() string {
	return m.Label()
}

var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// ParseWeekLabel parses a week label produced by Week.Label.
func ParseWeekLabel(s string) (Week, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return Week{}, fmt.Errorf("parse week %q: %w", s, err)
	}
	if d.Weekday() != time.Friday {
		return Week{}, fmt.Errorf("parse week %q: not a friday", s)
	}
	return Week{Friday: d}, nil
}

// ParseMonthLabel parses a month label produced by Month.Label.
func ParseMonthLabel(s string) (Month, error) {
	d, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return Month{Year: d.Year(), Month: d.Month()}, nil
}
