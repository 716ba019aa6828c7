package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

func TestWriteText(t *testing.T) {
	withDoc := meeting(2015, time.January, 15, event.StatusPassed)
	withDoc.Documents = []event.Link{{URL: "https://example.com/jan.pdf", Note: "Agenda"}}
	events := []*event.Event{
		meeting(2014, time.June, 5, event.StatusPassed),
		withDoc,
	}

	tests := []struct {
		name        string
		result      *OutputResult
		verbose     bool
		contains    []string
		notContains []string
	}{
		{
			name:     "no new meetings",
			result:   &OutputResult{},
			contains: []string{"No new meetings found."},
		},
		{
			name:     "no meetings in show-all mode",
			result:   &OutputResult{ShowAll: true},
			contains: []string{"No meetings found."},
		},
		{
			name:   "new meetings grouped by year",
			result: &OutputResult{NewEvents: events, EventCount: 2, ByYear: groupByYear(events)},
			contains: []string{
				"2014 (1 new):",
				"2015 (1 new):",
				"NEW: Thu Jun 5, 2014 12:45 PM - Commission on Chicago Landmarks [passed]",
				"Total: 2 new",
			},
			notContains: []string{"ID:"},
		},
		{
			name:        "show all drops the prefix",
			result:      &OutputResult{NewEvents: events, EventCount: 2, ByYear: groupByYear(events), ShowAll: true},
			contains:    []string{"2015 (1 meetings):", "Total: 2 meetings"},
			notContains: []string{"NEW:"},
		},
		{
			name:    "verbose adds details",
			result:  &OutputResult{NewEvents: events, EventCount: 2, ByYear: groupByYear(events)},
			verbose: true,
			contains: []string{
				"ID: chi_landmark_commission/201501151245/x/commission_on_chicago_landmarks",
				"Location: City Hall, 121 N. LaSalle St., Room 201-A",
				"Agenda: https://example.com/jan.pdf",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteOutput(&buf, tt.result, FormatText, tt.verbose); err != nil {
				t.Fatalf("WriteOutput() error = %v", err)
			}
			out := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(out, unwanted) {
					t.Errorf("output should not contain %q:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestWriteText_YearsAscending(t *testing.T) {
	events := []*event.Event{
		meeting(2015, time.January, 15, event.StatusPassed),
		meeting(2013, time.May, 2, event.StatusPassed),
		meeting(2014, time.June, 5, event.StatusPassed),
	}
	var buf bytes.Buffer
	if err := WriteOutput(&buf, &OutputResult{NewEvents: events, EventCount: 3, ByYear: groupByYear(events)}, FormatText, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	i13, i14, i15 := strings.Index(out, "2013 ("), strings.Index(out, "2014 ("), strings.Index(out, "2015 (")
	if !(i13 < i14 && i14 < i15) {
		t.Errorf("years out of order:\n%s", out)
	}
}

func TestFormatStart(t *testing.T) {
	noClock := meeting(2015, time.March, 5, event.StatusPassed)
	noClock.Start.Time = nil

	tests := []struct {
		name  string
		event *event.Event
		want  string
	}{
		{"with clock", meeting(2015, time.March, 5, event.StatusPassed), "Thu Mar 5, 2015 12:45 PM"},
		{"without clock", noClock, "Thu Mar 5, 2015"},
		{"undated", &event.Event{}, "Date TBD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStart(tt.event); got != tt.want {
				t.Errorf("formatStart() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "json", "yaml"} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Errorf("ParseOutputFormat(%q) error = %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestGroupByYear(t *testing.T) {
	if groupByYear(nil) != nil {
		t.Error("groupByYear(nil) should be nil")
	}

	events := []*event.Event{
		meeting(2015, time.January, 15, event.StatusPassed),
		meeting(2014, time.June, 5, event.StatusPassed),
		meeting(2015, time.February, 5, event.StatusPassed),
	}
	years := groupByYear(events)
	if len(years[2015]) != 2 || years[2015][1] != events[2] {
		t.Errorf("2015 group = %v, want Jan then Feb", years[2015])
	}
	if len(years[2014]) != 1 {
		t.Errorf("2014 group = %v", years[2014])
	}
}

func TestWriteMeeting(t *testing.T) {
	evt := meeting(2015, time.January, 15, event.StatusPassed)
	evt.Description = "The Commission on Chicago Landmarks meets monthly."

	var buf bytes.Buffer
	if err := WriteMeeting(&buf, evt, FormatText); err != nil {
		t.Fatalf("WriteMeeting() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Commission on Chicago Landmarks\n",
		"Status:   passed",
		"Location: City Hall, 121 N. LaSalle St., Room 201-A",
		"Source:   " + testURL,
		"meets monthly.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Document:") {
		t.Errorf("the empty document placeholder should not be printed:\n%s", out)
	}

	buf.Reset()
	if err := WriteMeeting(&buf, evt, FormatYAML); err != nil {
		t.Fatalf("WriteMeeting() yaml error = %v", err)
	}
	if !strings.Contains(buf.String(), "id: "+evt.ID) {
		t.Errorf("yaml output missing id:\n%s", buf.String())
	}

	if err := WriteMeeting(&buf, evt, OutputFormat("xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}
