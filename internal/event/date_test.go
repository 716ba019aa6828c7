package event

import (
	"testing"
	"time"
)

func TestNewDate(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   time.Month
		day     int
		wantErr bool
	}{
		{"regular date", 2015, time.January, 15, false},
		{"leap day", 2016, time.February, 29, false},
		{"non-leap Feb 29", 2015, time.February, 29, true},
		{"day zero", 2015, time.March, 0, true},
		{"April 31", 2015, time.April, 31, true},
		{"month 13", 2015, 13, 1, true},
		{"year zero", 0, time.January, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDate(tt.year, tt.month, tt.day)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewDate(%d, %v, %d) expected error, got %v", tt.year, tt.month, tt.day, d)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDate() unexpected error: %v", err)
			}
			if d.Year != tt.year || d.Month != tt.month || d.Day != tt.day {
				t.Errorf("NewDate() = %v", d)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2014-07-08")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d != (Date{2014, time.July, 8}) {
		t.Errorf("ParseDate() = %v, want 2014-07-08", d)
	}

	if _, err := ParseDate("Jul 8 2014"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestDateAt(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	d := Date{2015, time.January, 15}
	got := d.At(NewClock(12, 45), chicago)
	want := time.Date(2015, time.January, 15, 18, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("At() = %v, want %v", got.UTC(), want)
	}

	if midnight := d.At(nil, nil); !midnight.Equal(time.Date(2015, time.January, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("At(nil, nil) = %v, want UTC midnight", midnight)
	}
}

func TestClockText(t *testing.T) {
	var c Clock
	if err := c.UnmarshalText([]byte("12:45:00")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if c != (Clock{Hour: 12, Minute: 45}) {
		t.Errorf("clock = %+v, want 12:45", c)
	}
	if c.String() != "12:45:00" {
		t.Errorf("String() = %q", c.String())
	}
}

func TestIsPastEvent(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		start    Date
		wantPast bool
	}{
		{"yesterday", Date{2026, time.October, 18}, true},
		{"today", Date{2026, time.October, 19}, false},
		{"next year", Date{2027, time.January, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &Event{Start: Point{Date: tt.start}}
			if got := evt.IsPastEvent(now); got != tt.wantPast {
				t.Errorf("IsPastEvent() = %v, want %v", got, tt.wantPast)
			}
			if got := evt.IsUpcoming(now); got == tt.wantPast {
				t.Errorf("IsUpcoming() = %v, want %v", got, !tt.wantPast)
			}
		})
	}
}

func TestIsWithinDays(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start Date
		days  int
		want  bool
	}{
		{"disabled", Date{2020, time.January, 1}, 0, true},
		{"tomorrow within 7", Date{2026, time.October, 20}, 7, true},
		{"two weeks out", Date{2026, time.November, 2}, 7, false},
		{"already passed", Date{2026, time.October, 1}, 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &Event{Start: Point{Date: tt.start}}
			if got := evt.IsWithinDays(now, tt.days); got != tt.want {
				t.Errorf("IsWithinDays() = %v, want %v", got, tt.want)
			}
		})
	}
}
