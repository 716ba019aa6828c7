package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pfrederiksen/chi-landmarks/internal/config"
	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"github.com/pfrederiksen/chi-landmarks/internal/logger"
	"github.com/pfrederiksen/chi-landmarks/internal/metrics"
)

const (
	UserAgent  = config.DefaultUserAgent
	Timeout    = 30 * time.Second
	MaxRetries = 3

	maxBodySize = 10 << 20
)

// RetryInitialInterval is the first backoff delay between fetch attempts.
// Tests lower it to avoid real sleeps.
var RetryInitialInterval = 2 * time.Second

// Scraper handles fetching and parsing the commission page
type Scraper struct {
	client     *http.Client
	url        string
	userAgent  string
	maxRetries int
	extractor  *Extractor
	metrics    *metrics.Metrics
}

// New creates a Scraper for the default page URL
func New() *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: Timeout,
		},
		url:        config.DefaultURL,
		userAgent:  UserAgent,
		maxRetries: MaxRetries,
		extractor:  NewExtractor(nil),
	}
}

// NewFromConfig creates a Scraper from loaded settings. An empty URL or
// user agent and a zero timeout keep the defaults of New. m may be nil.
func NewFromConfig(cfg config.Config, m *metrics.Metrics) *Scraper {
	s := New()
	if cfg.URL != "" {
		s.url = cfg.URL
	}
	if cfg.UserAgent != "" {
		s.userAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		s.client.Timeout = cfg.Timeout
	}
	s.maxRetries = cfg.MaxRetries
	s.extractor = NewExtractor(cfg.Location())
	s.metrics = m
	return s
}

// URL returns the page the scraper fetches.
func (s *Scraper) URL() string {
	return s.url
}

// FetchEvents fetches the commission page and extracts every meeting
func (s *Scraper) FetchEvents(ctx context.Context) ([]*event.Event, error) {
	start := time.Now()

	body, finalURL, err := s.fetch(ctx)
	if err != nil {
		s.metrics.ObserveFetch(time.Since(start), err)
		return nil, err
	}

	events, err := s.extractor.ParseEvents(bytes.NewReader(body), finalURL)
	s.metrics.ObserveFetch(time.Since(start), err)
	if err != nil {
		s.metrics.ParseFailed()
		logger.Error("Meeting extraction failed", logger.Fields{"url": finalURL}, err)
		return nil, fmt.Errorf("extracting meetings: %w", err)
	}

	for _, evt := range events {
		s.metrics.MeetingParsed(evt.Status)
	}
	logger.Debug("Fetched meetings", logger.Fields{
		"url":         finalURL,
		"meetings":    len(events),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return events, nil
}

// retryableError marks a response status worth retrying.
type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.status)
}

// fetch downloads the page body, retrying network errors, 429 and 5xx
// responses with exponential backoff. It returns the URL after redirects.
func (s *Scraper) fetch(ctx context.Context) ([]byte, string, error) {
	var (
		body     []byte
		finalURL string
		attempt  int
	)

	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", s.userAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetching page: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, resp.Body)
			return &retryableError{status: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		body = data
		finalURL = resp.Request.URL.String()
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		logger.Warn("Fetch failed, retrying", logger.Fields{
			"url":     s.url,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var status *retryableError
		if errors.As(err, &status) {
			return nil, "", fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		return nil, "", err
	}
	return body, finalURL, nil
}
