package event

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// Date is a calendar date with no time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the Date for year, month and day.
// Out-of-range values are rejected rather than normalized.
func NewDate(year int, month time.Month, day int) (Date, error) {
	if year < 1 || year > 9999 {
		return Date{}, fmt.Errorf("year %d out of range", year)
	}
	if month < time.January || month > time.December {
		return Date{}, fmt.Errorf("month %d out of range", month)
	}
	// Day 0 of the following month is the last day of this one.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 || day > last {
		return Date{}, fmt.Errorf("day %d out of range for %s %d", day, month, year)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// DateOf returns the Date on which t falls in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in "2006-01-02" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// At returns the instant on d at clock c in loc. A nil clock means midnight.
func (d Date) At(c *Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	var h, m, s int
	if c != nil {
		h, m, s = c.Hour, c.Minute, c.Second
	}
	return time.Date(d.Year, d.Month, d.Day, h, m, s, 0, loc)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.At(nil, time.UTC).Before(other.At(nil, time.UTC))
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.At(nil, time.UTC).Sub(d.At(nil, time.UTC)).Hours() / 24)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// NewClock returns a pointer to the clock time hour:minute.
func NewClock(hour, minute int) *Clock {
	return &Clock{Hour: hour, Minute: minute}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(data []byte) error {
	t, err := time.Parse(clockLayout, strings.TrimSpace(string(data)))
	if err != nil {
		return err
	}
	*c = Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
	return nil
}

// IsPastEvent checks if an event's start date is before the date of now.
func (e *Event) IsPastEvent(now time.Time) bool {
	return e.Start.Date.Before(DateOf(now))
}

// IsWithinDays checks if an event starts within N days from now.
// Returns true if days <= 0 (feature disabled).
func (e *Event) IsWithinDays(now time.Time, days int) bool {
	if days <= 0 {
		return true
	}
	diff := DateOf(now).DaysUntil(e.Start.Date)
	return diff >= 0 && diff < days
}

// IsUpcoming checks if an event is today or later.
func (e *Event) IsUpcoming(now time.Time) bool {
	return !e.IsPastEvent(now)
}
