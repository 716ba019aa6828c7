// Package filter narrows a list of meetings by date range, status and
// published documents.
//
// Example usage:
//
//	// Upcoming meetings in March that already have an agenda
//	f := filter.NewFilter()
//	from, to, _ := filter.ParseDateRange("March", time.Now())
//	f.DateFrom, f.DateTo = &from, &to
//	f.WithDocuments = true
//
//	filtered := f.Apply(events)
package filter

import (
	"fmt"
	"strings"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

// Filter represents meeting filtering criteria
type Filter struct {
	// Date range filtering, inclusive on both ends
	DateFrom *event.Date `json:"date_from,omitempty"`
	DateTo   *event.Date `json:"date_to,omitempty"`

	// Statuses keeps meetings whose status is one of these (case-insensitive)
	Statuses []string `json:"statuses,omitempty"`

	// WithDocuments keeps only meetings that link at least one document
	WithDocuments bool `json:"with_documents,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all meetings until criteria are added.
func NewFilter() *Filter {
	return &Filter{
		Statuses: []string{},
	}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Statuses) == 0 &&
		!f.WithDocuments
}

// Matches checks if a meeting matches all active filter criteria.
// An empty filter matches all meetings. A meeting without a start date
// never matches a date range.
func (f *Filter) Matches(evt *event.Event) bool {
	if f.IsEmpty() {
		return true
	}

	date := evt.Start.Date
	if f.DateFrom != nil && (date.IsZero() || date.Before(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && (date.IsZero() || f.DateTo.Before(date)) {
		return false
	}

	if len(f.Statuses) > 0 {
		matched := false
		for _, status := range f.Statuses {
			if strings.EqualFold(evt.Status, strings.TrimSpace(status)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.WithDocuments && !evt.HasDocuments() {
		return false
	}

	return true
}

// Apply applies the filter to a list of meetings and returns only matching ones.
// If the filter is empty, returns the original list unchanged.
func (f *Filter) Apply(events []*event.Event) []*event.Event {
	if f.IsEmpty() {
		return events
	}

	filtered := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}

	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "From: Jan 1, 2015 | To: Mar 31, 2015 | Status: passed | With documents"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom.At(nil, nil).Format("Jan 2, 2006")))
	}

	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo.At(nil, nil).Format("Jan 2, 2006")))
	}

	if len(f.Statuses) > 0 {
		parts = append(parts, fmt.Sprintf("Status: %s", strings.Join(f.Statuses, ", ")))
	}

	if f.WithDocuments {
		parts = append(parts, "With documents")
	}

	return strings.Join(parts, " | ")
}
