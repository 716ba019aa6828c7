package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"github.com/pfrederiksen/chi-landmarks/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
	calls  int
}

func (f *fakeFetcher) FetchEvents(context.Context) ([]*event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*event.Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

// slowFetcher blocks every fetch until release is closed.
type slowFetcher struct {
	events  []*event.Event
	started chan struct{}
	release chan struct{}

	mu        sync.Mutex
	calls     int
	cancelled bool
}

func newSlowFetcher(events []*event.Event) *slowFetcher {
	return &slowFetcher{events: events, started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (f *slowFetcher) FetchEvents(ctx context.Context) ([]*event.Event, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.started <- struct{}{}

	<-f.release

	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		f.cancelled = true
		return nil, ctx.Err()
	}
	out := make([]*event.Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

func meeting(y int, m time.Month, d int, status string, docs ...event.Link) *event.Event {
	if len(docs) == 0 {
		docs = []event.Link{{}}
	}
	date := event.Date{Year: y, Month: m, Day: d}
	evt := &event.Event{
		Type:           event.TypeEvent,
		Name:           "Commission on Chicago Landmarks",
		Classification: event.Commission,
		Start:          event.Point{Date: date, Time: event.NewClock(12, 45)},
		End:            event.Point{Date: date},
		Location:       event.Location{Name: "City Hall", Address: "121 N. LaSalle St., Room 201-A"},
		Sources:        []event.Link{{URL: "https://www.cityofchicago.org/ccl.html"}},
		Documents:      docs,
		Status:         status,
	}
	evt.ID = event.GenerateID("chi_landmark_commission", evt)
	return evt
}

func fixtureMeetings() []*event.Event {
	return []*event.Event{
		meeting(2015, time.March, 5, event.StatusPassed, event.Link{URL: "https://example.com/mar.pdf", Note: "Agenda"}),
		meeting(2014, time.June, 5, event.StatusPassed),
		meeting(2015, time.January, 15, event.StatusPassed),
		meeting(2015, time.July, 9, event.StatusTentative),
	}
}

func newTestServer(t *testing.T, f *fakeFetcher, ttl time.Duration) *Server {
	t.Helper()
	s := New(f, metrics.New(), ttl, time.UTC)
	s.now = func() time.Time { return time.Date(2015, time.June, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeMeetings(t *testing.T, rec *httptest.ResponseRecorder) meetingsResponse {
	t.Helper()
	var body struct {
		Meetings []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"meetings"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	var out meetingsResponse
	out.Count = body.Count
	for _, m := range body.Meetings {
		out.Meetings = append(out.Meetings, &event.Event{ID: m.ID, Status: m.Status})
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, time.Minute)

	rec := get(t, s, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMeetings(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{events: fixtureMeetings()}, time.Minute)

	rec := get(t, s, "/meetings")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeMeetings(t, rec)
	require.Equal(t, 4, body.Count)
	assert.Equal(t, "chi_landmark_commission/201406051245/x/commission_on_chicago_landmarks", body.Meetings[0].ID, "meetings are sorted by start")
	assert.Equal(t, "chi_landmark_commission/201507091245/x/commission_on_chicago_landmarks", body.Meetings[3].ID)
}

func TestMeetings_Filters(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCount int
		wantCode  int
	}{
		{"year range", "?range=2015", 3, http.StatusOK},
		{"month range", "?range=Mar%202015", 1, http.StatusOK},
		{"status", "?status=tentative", 1, http.StatusOK},
		{"several statuses", "?status=tentative,passed", 4, http.StatusOK},
		{"documents only", "?documents=true", 1, http.StatusOK},
		{"combined", "?range=2015&status=passed", 2, http.StatusOK},
		{"bad range", "?range=someday", 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeFetcher{events: fixtureMeetings()}, time.Minute)

			rec := get(t, s, "/meetings"+tt.query)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCount, decodeMeetings(t, rec).Count)
			}
		})
	}
}

func TestMeetingsByYear(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{events: fixtureMeetings()}, time.Minute)

	rec := get(t, s, "/meetings/2014")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeMeetings(t, rec).Count)

	rec = get(t, s, "/meetings/1999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"meetings":[]`)

	rec = get(t, s, "/meetings/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeetings_Cache(t *testing.T) {
	f := &fakeFetcher{events: fixtureMeetings()}
	s := newTestServer(t, f, time.Minute)

	get(t, s, "/meetings")
	get(t, s, "/meetings.ics")
	assert.Equal(t, 1, f.calls, "second request within TTL should be cached")

	base := s.now()
	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	get(t, s, "/meetings")
	assert.Equal(t, 2, f.calls, "expired cache should refetch")
}

func TestMeetings_ZeroTTLAlwaysFetches(t *testing.T) {
	f := &fakeFetcher{events: fixtureMeetings()}
	s := newTestServer(t, f, 0)

	get(t, s, "/meetings")
	get(t, s, "/meetings")
	assert.Equal(t, 2, f.calls)
}

func TestMeetings_FetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	s := newTestServer(t, f, time.Minute)

	rec := get(t, s, "/meetings")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMeetings_StaleOnError(t *testing.T) {
	f := &fakeFetcher{events: fixtureMeetings()}
	s := newTestServer(t, f, time.Minute)

	require.Equal(t, http.StatusOK, get(t, s, "/meetings").Code)

	f.err = errors.New("upstream down")
	base := s.now()
	s.now = func() time.Time { return base.Add(time.Hour) }

	rec := get(t, s, "/meetings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decodeMeetings(t, rec).Count)
	assert.Equal(t, 2, f.calls)
}

func TestMeetings_ConcurrentRefreshFetchesOnce(t *testing.T) {
	f := newSlowFetcher(fixtureMeetings())
	s := New(f, metrics.New(), time.Minute, time.UTC)

	const callers = 8
	var wg sync.WaitGroup
	counts := make(chan int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, _, err := s.meetings(context.Background())
			if err == nil {
				counts <- len(events)
			}
		}()
	}

	<-f.started
	close(f.release)
	wg.Wait()
	close(counts)

	got := 0
	for n := range counts {
		assert.Equal(t, 4, n)
		got++
	}
	assert.Equal(t, callers, got)
	assert.Equal(t, 1, f.calls, "callers share a single upstream fetch")
}

func TestMeetings_CallerLeavingDoesNotCancelRefresh(t *testing.T) {
	f := newSlowFetcher(fixtureMeetings())
	s := New(f, metrics.New(), time.Minute, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := s.meetings(ctx)
		errCh <- err
	}()

	<-f.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(f.release)

	require.Eventually(t, func() bool {
		_, ok := s.fresh()
		return ok
	}, time.Second, 5*time.Millisecond, "the refresh finishes for later callers")

	events, _, err := s.meetings(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 4)
	assert.Equal(t, 1, f.calls)
	assert.False(t, f.cancelled, "upstream fetch ran on a detached context")
}

func TestMeetings_CacheHitDoesNotWaitForRefresh(t *testing.T) {
	f := newSlowFetcher(fixtureMeetings())
	s := New(f, metrics.New(), time.Minute, time.UTC)
	base := time.Date(2015, time.June, 15, 12, 0, 0, 0, time.UTC)
	var clock sync.Mutex
	now := base
	s.now = func() time.Time {
		clock.Lock()
		defer clock.Unlock()
		return now
	}

	// Seed the cache.
	go func() { <-f.started; f.release <- struct{}{} }()
	_, _, err := s.meetings(context.Background())
	require.NoError(t, err)

	// Expire it and start a slow refresh.
	clock.Lock()
	now = base.Add(2 * time.Minute)
	clock.Unlock()
	go s.meetings(context.Background())
	<-f.started

	// The lock is free while the refresh is in flight.
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		s.fetchedAt = now
		s.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cache lock held during upstream fetch")
	}

	events, _, err := s.meetings(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 4)

	close(f.release)
}

func TestCalendar(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{events: fixtureMeetings()}, time.Minute)

	rec := get(t, s, "/meetings.ics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Equal(t, 4, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "X-WR-CALNAME:Commission on Chicago Landmarks")
}

func TestCalendar_Empty(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{events: fixtureMeetings()}, time.Minute)

	rec := get(t, s, "/meetings.ics?status=cancelled")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, time.Minute)

	rec := get(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chi_landmarks_parse_failures_total")
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, time.Minute)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/nope").Code)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
