package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

// DefaultDuration is used for meetings without an end time.
const DefaultDuration = 3 * time.Hour

const uidDomain = "cityofchicago.org"

// GenerateICS generates an iCalendar (.ics) file for a single meeting
func GenerateICS(evt *event.Event, loc *time.Location) string {
	var ics strings.Builder
	writeHeader(&ics, "")
	writeEvent(&ics, evt, loc, time.Now().UTC())
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

// GenerateBulkICS generates one calendar holding every meeting.
// It returns "" when there are no meetings.
func GenerateBulkICS(events []*event.Event, name string, loc *time.Location) string {
	if len(events) == 0 {
		return ""
	}

	var ics strings.Builder
	writeHeader(&ics, name)
	now := time.Now().UTC()
	for _, evt := range events {
		writeEvent(&ics, evt, loc, now)
	}
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeHeader(ics *strings.Builder, name string) {
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Chi Landmarks//chi-landmarks//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if name != "" {
		ics.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICS(name)))
	}
}

func writeEvent(ics *strings.Builder, evt *event.Event, loc *time.Location, stamp time.Time) {
	ics.WriteString("BEGIN:VEVENT\r\n")

	ics.WriteString(fmt.Sprintf("UID:%s@%s\r\n", strings.ReplaceAll(evt.ID, "/", "-"), uidDomain))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(stamp)))

	if evt.AllDay || evt.Start.Time == nil {
		ics.WriteString(fmt.Sprintf("DTSTART;VALUE=DATE:%s\r\n", formatICSDate(evt.Start.Date)))
		end := evt.End.Date
		if end.IsZero() || !evt.Start.Date.Before(end) {
			end = event.DateOf(evt.Start.Date.At(nil, time.UTC).AddDate(0, 0, 1))
		}
		ics.WriteString(fmt.Sprintf("DTEND;VALUE=DATE:%s\r\n", formatICSDate(end)))
	} else {
		startTime := evt.StartTime(loc)
		endTime := startTime.Add(DefaultDuration)
		if evt.End.Time != nil && !evt.End.Date.IsZero() {
			endTime = evt.End.Date.At(evt.End.Time, loc)
		}
		ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(startTime)))
		ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(endTime)))
	}

	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(evt.Name)))

	var description strings.Builder
	description.WriteString(evt.Description)
	for _, doc := range evt.Documents {
		if doc.IsZero() {
			continue
		}
		if description.Len() > 0 {
			description.WriteString("\n")
		}
		description.WriteString(fmt.Sprintf("%s: %s", doc.Note, doc.URL))
	}
	if description.Len() > 0 {
		ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(description.String())))
	}

	location := evt.Location.Name
	if evt.Location.Address != "" {
		location = fmt.Sprintf("%s, %s", evt.Location.Name, evt.Location.Address)
	}
	ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(location)))

	if len(evt.Sources) > 0 && evt.Sources[0].URL != "" {
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", evt.Sources[0].URL))
	}

	if evt.Classification != "" {
		ics.WriteString(fmt.Sprintf("CATEGORIES:%s\r\n", escapeICS(evt.Classification)))
	}

	ics.WriteString(fmt.Sprintf("STATUS:%s\r\n", icsStatus(evt.Status)))
	ics.WriteString("SEQUENCE:0\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")

	ics.WriteString("END:VEVENT\r\n")
}

// icsStatus maps a meeting status onto the RFC 5545 STATUS values
func icsStatus(status string) string {
	switch status {
	case event.StatusCancelled:
		return "CANCELLED"
	case event.StatusTentative:
		return "TENTATIVE"
	default:
		return "CONFIRMED"
	}
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatICSDate(d event.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
