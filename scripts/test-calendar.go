package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/calendar"
	"github.com/pfrederiksen/chi-landmarks/internal/config"
	"github.com/pfrederiksen/chi-landmarks/internal/scraper"
)

func main() {
	page := "testdata/fixtures/landmarks_commission.html"
	if len(os.Args) > 1 {
		page = os.Args[1]
	}

	f, err := os.Open(page)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening page: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading time zone: %v\n", err)
		os.Exit(1)
	}

	events, err := scraper.NewExtractor(loc).ParseEvents(f, config.DefaultURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting meetings: %v\n", err)
		os.Exit(1)
	}

	// Generate .ics file
	icsContent := calendar.GenerateBulkICS(events, scraper.MeetingName, loc)
	if icsContent == "" {
		fmt.Fprintln(os.Stderr, "No meetings found on page")
		os.Exit(1)
	}

	// Write to file (owner read/write only for security)
	filename := "test-landmarks-meetings.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Generated calendar file with %d meetings: %s\n\n", len(events), filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app (double-click)")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
