package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pfrederiksen/chi-landmarks/internal/calendar"
	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"github.com/pfrederiksen/chi-landmarks/internal/filter"
	"github.com/pfrederiksen/chi-landmarks/internal/scraper"
)

type meetingsResponse struct {
	Meetings  []*event.Event `json:"meetings"`
	Count     int            `json:"count"`
	FetchedAt time.Time      `json:"fetched_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleMeetings lists meetings, narrowed by the optional query parameters
// range, status (comma separated) and documents=true.
func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	f, err := s.queryFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, fetchedAt, err := s.meetings(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeMeetings(w, f.Apply(events), fetchedAt)
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 {
		jsonError(w, "year must be a positive number", http.StatusBadRequest)
		return
	}

	events, fetchedAt, err := s.meetings(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	matched := make([]*event.Event, 0)
	for _, evt := range events {
		if evt.Start.Date.Year == year {
			matched = append(matched, evt)
		}
	}
	writeMeetings(w, matched, fetchedAt)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	f, err := s.queryFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, _, err := s.meetings(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	ics := calendar.GenerateBulkICS(f.Apply(events), scraper.MeetingName, s.loc)
	if ics == "" {
		jsonError(w, "no meetings", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="chi-landmarks.ics"`)
	w.Write([]byte(ics))
}

func (s *Server) queryFilter(r *http.Request) (*filter.Filter, error) {
	q := r.URL.Query()
	f := filter.NewFilter()

	if rng := q.Get("range"); rng != "" {
		from, to, err := filter.ParseDateRange(rng, s.now().In(s.loc))
		if err != nil {
			return nil, err
		}
		f.DateFrom, f.DateTo = &from, &to
	}
	if status := q.Get("status"); status != "" {
		f.Statuses = strings.Split(status, ",")
	}
	f.WithDocuments = q.Get("documents") == "true"

	return f, nil
}

func writeMeetings(w http.ResponseWriter, events []*event.Event, fetchedAt time.Time) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meetingsResponse{
		Meetings:  events,
		Count:     len(events),
		FetchedAt: fetchedAt.UTC(),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
