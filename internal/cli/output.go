package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates a --format value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be 'text', 'json' or 'yaml')", s)
	}
}

// OutputResult contains data to be output
type OutputResult struct {
	CheckedAt  time.Time              `json:"checked_at" yaml:"checked_at"`
	Source     string                 `json:"source" yaml:"source"`
	NewEvents  []*event.Event         `json:"new_events" yaml:"new_events"`
	EventCount int                    `json:"event_count" yaml:"event_count"`
	ByYear     map[int][]*event.Event `json:"by_year,omitempty" yaml:"by_year,omitempty"`
	ShowAll    bool                   `json:"show_all,omitempty" yaml:"show_all,omitempty"`
	Filter     string                 `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// groupByYear buckets meetings by start year, keeping their order.
func groupByYear(events []*event.Event) map[int][]*event.Event {
	if len(events) == 0 {
		return nil
	}
	years := make(map[int][]*event.Event)
	for _, evt := range events {
		years[evt.Start.Date.Year] = append(years[evt.Start.Date.Year], evt)
	}
	return years
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatYAML:
		return writeYAML(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func writeYAML(w io.Writer, result *OutputResult) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(result); err != nil {
		return err
	}
	return encoder.Close()
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	// Determine labels based on ShowAll mode
	eventLabel := "new"
	eventPrefix := "NEW"
	if result.ShowAll {
		eventLabel = "meetings"
		eventPrefix = ""
	}

	if result.Filter != "" {
		fmt.Fprintf(w, "Filters: %s\n", result.Filter)
	}

	if result.EventCount == 0 {
		if result.ShowAll {
			fmt.Fprintln(w, "No meetings found.")
		} else {
			fmt.Fprintln(w, "No new meetings found.")
		}
		return nil
	}

	years := make([]int, 0, len(result.ByYear))
	for year := range result.ByYear {
		years = append(years, year)
	}
	sort.Ints(years)

	for _, year := range years {
		events := result.ByYear[year]
		if len(events) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%d (%d %s):\n", year, len(events), eventLabel)
		for _, evt := range events {
			line := fmt.Sprintf("%s - %s [%s]", formatStart(evt), evt.Name, evt.Status)
			if eventPrefix != "" {
				fmt.Fprintf(w, "  %s: %s\n", eventPrefix, line)
			} else {
				fmt.Fprintf(w, "  %s\n", line)
			}
			if verbose {
				fmt.Fprintf(w, "       ID: %s\n", evt.ID)
				fmt.Fprintf(w, "       Location: %s, %s\n", evt.Location.Name, evt.Location.Address)
				for _, doc := range evt.Documents {
					if !doc.IsZero() {
						fmt.Fprintf(w, "       %s: %s\n", doc.Note, doc.URL)
					}
				}
			}
		}
	}
	fmt.Fprintf(w, "\nTotal: %d %s\n", result.EventCount, eventLabel)

	return nil
}

// WriteMeeting writes the full record of one meeting.
func WriteMeeting(w io.Writer, evt *event.Event, format OutputFormat) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(evt)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(evt); err != nil {
			return err
		}
		return encoder.Close()
	case FormatText:
		fmt.Fprintln(w, evt.Name)
		fmt.Fprintf(w, "  ID:       %s\n", evt.ID)
		fmt.Fprintf(w, "  Start:    %s\n", formatStart(evt))
		fmt.Fprintf(w, "  Status:   %s\n", evt.Status)
		fmt.Fprintf(w, "  Location: %s, %s\n", evt.Location.Name, evt.Location.Address)
		for _, src := range evt.Sources {
			fmt.Fprintf(w, "  Source:   %s\n", src.URL)
		}
		for _, doc := range evt.Documents {
			if !doc.IsZero() {
				fmt.Fprintf(w, "  Document: %s: %s\n", doc.Note, doc.URL)
			}
		}
		if evt.Description != "" {
			fmt.Fprintf(w, "\n%s\n", evt.Description)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func formatStart(evt *event.Event) string {
	if evt.Start.Date.IsZero() {
		return "Date TBD"
	}
	start := evt.StartTime(time.UTC)
	if evt.Start.Time == nil {
		return start.Format("Mon Jan 2, 2006")
	}
	return start.Format("Mon Jan 2, 2006 3:04 PM")
}
