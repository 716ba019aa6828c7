package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

// FormatMeeting formats a single meeting as a Telegram message
func FormatMeeting(evt *event.Event) string {
	var msg strings.Builder

	msg.WriteString("🏛️ <b>New Commission on Chicago Landmarks meeting</b>\n\n")

	msg.WriteString(fmt.Sprintf("📅 %s\n", niceStart(evt)))
	if evt.Location.Name != "" {
		msg.WriteString(fmt.Sprintf("📍 %s, %s\n", html.EscapeString(evt.Location.Name), html.EscapeString(evt.Location.Address)))
	}
	if evt.Status == event.StatusCancelled {
		msg.WriteString("⚠️ <b>Cancelled</b>\n")
	}

	for _, doc := range evt.Documents {
		if doc.IsZero() {
			continue
		}
		msg.WriteString(fmt.Sprintf("📄 <a href=\"%s\">%s</a>\n", html.EscapeString(doc.URL), html.EscapeString(doc.Note)))
	}

	if len(evt.Sources) > 0 && evt.Sources[0].URL != "" {
		msg.WriteString(fmt.Sprintf("\n🔗 <a href=\"%s\">Commission page</a>\n", html.EscapeString(evt.Sources[0].URL)))
	}

	msg.WriteString("\n#Chicago #Landmarks")

	return msg.String()
}

// FormatDigest formats a batch of meetings as one message grouped by year
func FormatDigest(events []*event.Event) string {
	if len(events) == 0 {
		return "No new meetings."
	}

	var msg strings.Builder
	msg.WriteString("📬 <b>Commission on Chicago Landmarks</b>\n\n")
	msg.WriteString(fmt.Sprintf("🗓 %d new meeting%s\n\n", len(events), pluralize(len(events))))

	byYear := make(map[int][]*event.Event)
	for _, evt := range events {
		byYear[evt.Start.Date.Year] = append(byYear[evt.Start.Date.Year], evt)
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	for _, year := range years {
		yearEvents := byYear[year]
		msg.WriteString(fmt.Sprintf("<b>%d</b> (%d meeting%s)\n", year, len(yearEvents), pluralize(len(yearEvents))))
		for _, evt := range yearEvents {
			msg.WriteString(fmt.Sprintf("  • %s", niceStart(evt)))
			if evt.Status == event.StatusCancelled {
				msg.WriteString(" (cancelled)")
			}
			if evt.HasDocuments() {
				msg.WriteString(" 📄")
			}
			msg.WriteString("\n")
		}
		msg.WriteString("\n")
	}

	msg.WriteString("#Chicago #Landmarks")

	return msg.String()
}

func niceStart(evt *event.Event) string {
	if evt.Start.Date.IsZero() {
		return "Date TBD"
	}
	start := evt.StartTime(time.UTC)
	if evt.Start.Time == nil {
		return start.Format("Monday, January 2, 2006")
	}
	return start.Format("Monday, January 2, 2006 at 3:04 PM")
}

func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
