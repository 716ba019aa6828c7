package event

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateID creates a deterministic ID for an event from the spider name,
// the start date and clock, and the meeting name:
//
//	chi_landmark_commission/201501151245/x/commission_on_chicago_landmarks
//
// A missing start date or clock renders as "None".
func GenerateID(spider string, e *Event) string {
	date := "None"
	if !e.Start.Date.IsZero() {
		date = fmt.Sprintf("%04d%02d%02d", e.Start.Date.Year, int(e.Start.Date.Month), e.Start.Date.Day)
	}
	clock := "None"
	if e.Start.Time != nil {
		clock = fmt.Sprintf("%02d%02d", e.Start.Time.Hour, e.Start.Time.Minute)
	}
	return strings.Join([]string{spider, date + clock, "x", snakeName(e.Name)}, "/")
}

func snakeName(name string) string {
	lower := cases.Lower(language.English).String(name)
	return strings.Trim(nonWord.ReplaceAllString(lower, "_"), "_")
}

// GenerateStatus infers a meeting status from free text and the start date.
//
// Text mentioning a cancellation or rescheduling wins. Otherwise a meeting
// before today has passed, one within the next week is confirmed, and
// anything later is tentative.
func GenerateStatus(e *Event, text string, now time.Time) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "cancel") || strings.Contains(lower, "rescheduled") {
		return StatusCancelled
	}
	if e.Start.Date.IsZero() {
		return StatusTentative
	}
	today := DateOf(now)
	if e.Start.Date.Before(today) {
		return StatusPassed
	}
	if today.DaysUntil(e.Start.Date) < 7 {
		return StatusConfirmed
	}
	return StatusTentative
}
