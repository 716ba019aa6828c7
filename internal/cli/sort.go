package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate   SortOrder = "date"
	SortByName   SortOrder = "name"
	SortByStatus SortOrder = "status"
)

// ParseSortOrder validates a --sort value.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortByDate, SortByName, SortByStatus:
		return o, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'date', 'name' or 'status')", s)
	}
}

// statusRank orders statuses from most to least actionable.
var statusRank = map[string]int{
	event.StatusConfirmed: 0,
	event.StatusTentative: 1,
	event.StatusCancelled: 2,
	event.StatusPassed:    3,
}

// sortEvents sorts a slice of events based on the specified sort order
func sortEvents(events []*event.Event, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDate(events[i], events[j])
		})
	case SortByName:
		sort.SliceStable(events, func(i, j int) bool {
			ni, nj := strings.ToLower(events[i].Name), strings.ToLower(events[j].Name)
			if ni != nj {
				return ni < nj
			}
			// If names are equal, sort by date
			return compareByDate(events[i], events[j])
		})
	case SortByStatus:
		sort.SliceStable(events, func(i, j int) bool {
			ri, rj := rank(events[i].Status), rank(events[j].Status)
			if ri != rj {
				return ri < rj
			}
			return compareByDate(events[i], events[j])
		})
	}
}

func rank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return len(statusRank)
}

// compareByDate reports whether i should come before j.
// Dated meetings come before undated ones.
func compareByDate(i, j *event.Event) bool {
	di, dj := i.Start.Date, j.Start.Date

	if !di.IsZero() && !dj.IsZero() {
		ti, tj := i.StartTime(nil), j.StartTime(nil)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return i.ID < j.ID
	}

	// If only one date is valid, put the valid one first
	if !di.IsZero() {
		return true
	}
	if !dj.IsZero() {
		return false
	}

	return i.ID < j.ID
}
