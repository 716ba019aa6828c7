package event

import (
	"sort"
	"strings"
	"time"
)

// Snapshot represents the meetings known at a point in time
type Snapshot struct {
	Events    map[string]*Event `json:"events"`     // keyed by Event.ID
	ChangeLog []*EventChange    `json:"change_log"` // Recent changes
	UpdatedAt string            `json:"updated_at"` // RFC3339 timestamp
}

// maxChangeLog bounds the number of changes kept in a snapshot.
const maxChangeLog = 200

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Events:    make(map[string]*Event),
		ChangeLog: make([]*EventChange, 0),
	}
}

// DiffResult contains the results of comparing a snapshot with fresh events
type DiffResult struct {
	NewEvents []*Event
	Years     map[int][]*Event // new events grouped by start year
}

// Diff compares current events against a previous snapshot and returns new events
func Diff(previous *Snapshot, current []*Event) *DiffResult {
	result := &DiffResult{
		NewEvents: make([]*Event, 0),
		Years:     make(map[int][]*Event),
	}

	if previous == nil {
		previous = NewSnapshot()
	}

	for _, evt := range current {
		if _, exists := previous.Events[evt.ID]; exists {
			continue
		}
		result.NewEvents = append(result.NewEvents, evt)
		year := evt.Start.Date.Year
		result.Years[year] = append(result.Years[year], evt)
	}

	SortByStart(result.NewEvents)
	for year := range result.Years {
		SortByStart(result.Years[year])
	}

	return result
}

// SortByStart orders events by start date and clock, then by ID.
func SortByStart(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ti := events[i].StartTime(time.UTC)
		tj := events[j].StartTime(time.UTC)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return events[i].ID < events[j].ID
	})
}

// CreateSnapshot creates a snapshot from a list of events
func CreateSnapshot(events []*Event, updatedAt string) *Snapshot {
	snap := NewSnapshot()
	snap.UpdatedAt = updatedAt

	for _, evt := range events {
		snap.Events[evt.ID] = evt
	}

	return snap
}

// AppendChanges adds changes to the snapshot's change log, keeping the newest entries.
func (s *Snapshot) AppendChanges(changes []*EventChange) {
	s.ChangeLog = append(s.ChangeLog, changes...)
	if over := len(s.ChangeLog) - maxChangeLog; over > 0 {
		s.ChangeLog = s.ChangeLog[over:]
	}
}

// EventChange represents a change detected in an event
type EventChange struct {
	EventID    string    `json:"event_id"`
	ChangeType string    `json:"change_type"` // "new", "status", "documents", "description"
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// DetectChanges compares two versions of the same meeting and returns detected changes
func DetectChanges(previous, current *Event, now time.Time) []*EventChange {
	if previous == nil {
		return []*EventChange{
			{
				EventID:    current.ID,
				ChangeType: "new",
				NewValue:   current.Start.Date.String(),
				DetectedAt: now,
			},
		}
	}

	var changes []*EventChange

	if previous.Status != current.Status {
		changes = append(changes, &EventChange{
			EventID:    current.ID,
			ChangeType: "status",
			OldValue:   previous.Status,
			NewValue:   current.Status,
			DetectedAt: now,
		})
	}

	if oldDocs, newDocs := documentKey(previous), documentKey(current); oldDocs != newDocs {
		changes = append(changes, &EventChange{
			EventID:    current.ID,
			ChangeType: "documents",
			OldValue:   oldDocs,
			NewValue:   newDocs,
			DetectedAt: now,
		})
	}

	if previous.Description != current.Description {
		changes = append(changes, &EventChange{
			EventID:    current.ID,
			ChangeType: "description",
			OldValue:   previous.Description,
			NewValue:   current.Description,
			DetectedAt: now,
		})
	}

	return changes
}

// documentKey flattens the real document URLs of an event into a comparable string.
func documentKey(e *Event) string {
	urls := make([]string, 0, len(e.Documents))
	for _, d := range e.Documents {
		if !d.IsZero() {
			urls = append(urls, d.URL)
		}
	}
	sort.Strings(urls)
	return strings.Join(urls, " ")
}

// CompareSnapshots compares a previous snapshot with fresh events and returns all detected changes
func CompareSnapshots(previous *Snapshot, current []*Event, now time.Time) []*EventChange {
	var allChanges []*EventChange
	if previous == nil {
		previous = NewSnapshot()
	}

	for _, evt := range current {
		allChanges = append(allChanges, DetectChanges(previous.Events[evt.ID], evt, now)...)
	}

	return allChanges
}
