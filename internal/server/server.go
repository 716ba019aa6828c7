// Package server exposes the commission's meetings over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"github.com/pfrederiksen/chi-landmarks/internal/logger"
	"github.com/pfrederiksen/chi-landmarks/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds one upstream fetch, retries included.
const refreshTimeout = 2 * time.Minute

// Fetcher supplies the current meetings.
type Fetcher interface {
	FetchEvents(ctx context.Context) ([]*event.Event, error)
}

// Server is the HTTP server for chi-landmarks.
type Server struct {
	router  chi.Router
	source  Fetcher
	metrics *metrics.Metrics
	loc     *time.Location
	ttl     time.Duration
	now     func() time.Time

	refresh        singleflight.Group
	refreshTimeout time.Duration

	mu        sync.Mutex
	cached    []*event.Event
	fetchedAt time.Time
}

type cacheEntry struct {
	events    []*event.Event
	fetchedAt time.Time
}

// New creates and configures the HTTP server. Fetched meetings are reused
// for ttl; a zero ttl fetches on every request.
func New(source Fetcher, m *metrics.Metrics, ttl time.Duration, loc *time.Location) *Server {
	if m == nil {
		m = metrics.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		source:  source,
		metrics: m,
		loc:     loc,
		ttl:     ttl,
		now:     time.Now,

		refreshTimeout: refreshTimeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/meetings", s.handleMeetings)
	r.Get("/meetings.ics", s.handleCalendar)
	r.Get("/meetings/{year}", s.handleYear)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	s.router = r
}

// meetings returns the cached meetings, refetching once they are older than
// the TTL. Concurrent refetches share one upstream fetch, which does not
// hold the cache lock and outlives the request that started it. A failed
// refetch falls back to the stale list when there is one.
func (s *Server) meetings(ctx context.Context) ([]*event.Event, time.Time, error) {
	if entry, ok := s.fresh(); ok {
		return entry.events, entry.fetchedAt, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := s.refresh.DoChan("meetings", func() (interface{}, error) {
		return s.fetch(detached)
	})

	select {
	case <-ctx.Done():
		return nil, time.Time{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, time.Time{}, res.Err
		}
		entry := res.Val.(cacheEntry)
		return entry.events, entry.fetchedAt, nil
	}
}

// fresh returns the cache when it is younger than the TTL.
func (s *Server) fresh() (cacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return cacheEntry{events: s.cached, fetchedAt: s.fetchedAt}, true
	}
	return cacheEntry{}, false
}

func (s *Server) fetch(ctx context.Context) (cacheEntry, error) {
	// A caller that missed the previous flight finds its result here.
	if entry, ok := s.fresh(); ok {
		return entry, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()
	events, err := s.source.FetchEvents(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.cached != nil {
			logger.Warn("Refresh failed, serving cached meetings", logger.Fields{
				"error":      err.Error(),
				"fetched_at": s.fetchedAt.Format(time.RFC3339),
			})
			return cacheEntry{events: s.cached, fetchedAt: s.fetchedAt}, nil
		}
		return cacheEntry{}, fmt.Errorf("fetching meetings: %w", err)
	}

	event.SortByStart(events)
	s.cached = events
	s.fetchedAt = s.now()
	return cacheEntry{events: events, fetchedAt: s.fetchedAt}, nil
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", logger.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
