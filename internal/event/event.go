package event

import (
	"encoding/json"
	"time"
)

// Classifications shared by every meeting source.
const (
	AdvisoryCommittee = "Advisory Committee"
	Board             = "Board"
	CityCouncil       = "City Council"
	Commission        = "Commission"
	Committee         = "Committee"
	Forum             = "Forum"
	NotClassified     = "Not classified"
)

// Statuses assigned by GenerateStatus.
const (
	StatusCancelled = "cancelled"
	StatusTentative = "tentative"
	StatusConfirmed = "confirmed"
	StatusPassed    = "passed"
)

// TypeEvent is the value of the "_type" field on every record.
const TypeEvent = "event"

// Event is a single public meeting in the civic event schema.
type Event struct {
	Type           string   `json:"_type" yaml:"_type"`
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"event_description" yaml:"event_description"`
	Classification string   `json:"classification" yaml:"classification"`
	Start          Point    `json:"start" yaml:"start"`
	End            Point    `json:"end" yaml:"end"`
	AllDay         bool     `json:"all_day" yaml:"all_day"`
	Location       Location `json:"location" yaml:"location"`
	Sources        []Link   `json:"sources" yaml:"sources"`
	Documents      []Link   `json:"documents" yaml:"documents"`
	Status         string   `json:"status" yaml:"status"`
}

// Point is the start or end of a meeting. Time is nil when unknown.
type Point struct {
	Date Date   `json:"date" yaml:"date"`
	Time *Clock `json:"time" yaml:"time"`
	Note string `json:"note" yaml:"note"`
}

// Location describes where a meeting takes place
type Location struct {
	Neighborhood string `json:"neighborhood" yaml:"neighborhood"`
	Name         string `json:"name" yaml:"name"`
	Address      string `json:"address" yaml:"address"`
}

// Link is a source page or a meeting document.
//
// A zero Link encodes as an empty object. Extractors use a single zero Link
// as the document list of a meeting with no matching documents.
type Link struct {
	URL  string `json:"url" yaml:"url"`
	Note string `json:"note" yaml:"note"`
}

// IsZero reports whether both fields are empty.
func (l Link) IsZero() bool {
	return l.URL == "" && l.Note == ""
}

// MarshalJSON encodes the zero Link as {}.
func (l Link) MarshalJSON() ([]byte, error) {
	if l.IsZero() {
		return []byte("{}"), nil
	}
	type plain Link
	return json.Marshal(plain(l))
}

// MarshalYAML encodes the zero Link as an empty mapping.
func (l Link) MarshalYAML() (interface{}, error) {
	if l.IsZero() {
		return map[string]string{}, nil
	}
	type plain Link
	return plain(l), nil
}

// StartTime returns the meeting start in loc. A missing clock means midnight.
func (e *Event) StartTime(loc *time.Location) time.Time {
	return e.Start.Date.At(e.Start.Time, loc)
}

// HasDocuments reports whether the event carries at least one real document link.
func (e *Event) HasDocuments() bool {
	for _, d := range e.Documents {
		if !d.IsZero() {
			return true
		}
	}
	return false
}
