package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

const monthNames = `jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december`

var (
	isoRangePattern       = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*\.\.\s*(\d{4}-\d{2}-\d{2})$`)
	yearPattern           = regexp.MustCompile(`^(\d{4})$`)
	monthYearPattern      = regexp.MustCompile(`(?i)^(` + monthNames + `)\.?\s+(\d{4})$`)
	sameMonthPattern      = regexp.MustCompile(`(?i)^(` + monthNames + `)\.?\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthPattern     = regexp.MustCompile(`(?i)^(` + monthNames + `)\.?\s+(\d{1,2})\s*-\s*(` + monthNames + `)\.?\s+(\d{1,2})$`)
	singleMonthPattern    = regexp.MustCompile(`(?i)^(` + monthNames + `)\.?$`)
	errInvalidRangeFormat = fmt.Errorf("invalid date range format. Use '2015', 'Mar 2015', 'Mar 1-15', 'March 1 - April 15', 'March', or '2015-01-01..2015-03-31'")
)

// ParseDateRange parses a date range string into inclusive start and end dates.
//
// Supported formats:
//   - "2015" - Entire year
//   - "Mar 2015" or "March 2015" - Entire month of that year
//   - "Mar 1-15" or "March 1-15" - Same month, different days
//   - "March 1 - April 15" - Different months
//   - "March" - Entire month
//   - "2015-01-01..2015-03-31" - Explicit dates
//
// Formats without a year infer it from now: a month already past this year
// means next year, and for cross-month ranges an end month before the start
// month rolls over to the following year.
func ParseDateRange(input string, now time.Time) (event.Date, event.Date, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return event.Date{}, event.Date{}, fmt.Errorf("date range cannot be empty")
	}

	if m := isoRangePattern.FindStringSubmatch(input); m != nil {
		from, err := event.ParseDate(m[1])
		if err != nil {
			return event.Date{}, event.Date{}, fmt.Errorf("invalid date %q: %w", m[1], err)
		}
		to, err := event.ParseDate(m[2])
		if err != nil {
			return event.Date{}, event.Date{}, fmt.Errorf("invalid date %q: %w", m[2], err)
		}
		return ordered(from, to)
	}

	if m := yearPattern.FindStringSubmatch(input); m != nil {
		year, _ := strconv.Atoi(m[1])
		return wholeMonths(year, time.January, year, time.December)
	}

	if m := monthYearPattern.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		year, _ := strconv.Atoi(m[2])
		return wholeMonths(year, month, year, month)
	}

	if m := sameMonthPattern.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		year := getYearForMonth(month, now)
		from, err := dateOf(year, month, m[2])
		if err != nil {
			return event.Date{}, event.Date{}, err
		}
		to, err := dateOf(year, month, m[3])
		if err != nil {
			return event.Date{}, event.Date{}, err
		}
		return ordered(from, to)
	}

	if m := crossMonthPattern.FindStringSubmatch(input); m != nil {
		month1 := parseMonth(m[1])
		month2 := parseMonth(m[3])

		year1 := getYearForMonth(month1, now)
		year2 := year1
		// If month2 < month1, assume month2 is in the next year
		if month2 < month1 {
			year2++
		}

		from, err := dateOf(year1, month1, m[2])
		if err != nil {
			return event.Date{}, event.Date{}, err
		}
		to, err := dateOf(year2, month2, m[4])
		if err != nil {
			return event.Date{}, event.Date{}, err
		}
		return ordered(from, to)
	}

	if m := singleMonthPattern.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		year := getYearForMonth(month, now)
		return wholeMonths(year, month, year, month)
	}

	return event.Date{}, event.Date{}, errInvalidRangeFormat
}

func dateOf(year int, month time.Month, day string) (event.Date, error) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return event.Date{}, fmt.Errorf("invalid day: %s", day)
	}
	date, err := event.NewDate(year, month, d)
	if err != nil {
		return event.Date{}, fmt.Errorf("invalid day: %w", err)
	}
	return date, nil
}

// wholeMonths spans the first day of the start month to the last day of
// the end month.
func wholeMonths(fromYear int, fromMonth time.Month, toYear int, toMonth time.Month) (event.Date, event.Date, error) {
	from, err := event.NewDate(fromYear, fromMonth, 1)
	if err != nil {
		return event.Date{}, event.Date{}, err
	}
	last := time.Date(toYear, toMonth+1, 0, 0, 0, 0, 0, time.UTC)
	return from, event.DateOf(last), nil
}

func ordered(from, to event.Date) (event.Date, event.Date, error) {
	if to.Before(from) {
		return event.Date{}, event.Date{}, fmt.Errorf("start date must be before end date")
	}
	return from, to, nil
}

// parseMonth converts a month name to time.Month
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))

	months := map[string]time.Month{
		"jan": time.January, "january": time.January,
		"feb": time.February, "february": time.February,
		"mar": time.March, "march": time.March,
		"apr": time.April, "april": time.April,
		"may": time.May,
		"jun": time.June, "june": time.June,
		"jul": time.July, "july": time.July,
		"aug": time.August, "august": time.August,
		"sep": time.September, "sept": time.September, "september": time.September,
		"oct": time.October, "october": time.October,
		"nov": time.November, "november": time.November,
		"dec": time.December, "december": time.December,
	}

	return months[name]
}

// getYearForMonth returns the appropriate year for a given month.
// If the month has already passed this year, returns next year.
func getYearForMonth(month time.Month, now time.Time) int {
	year := now.Year()
	if month < now.Month() {
		year++
	}
	return year
}
