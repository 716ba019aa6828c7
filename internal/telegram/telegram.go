package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pfrederiksen/chi-landmarks/internal/logger"
)

const (
	timeout         = 10 * time.Second
	maxRetries      = 3
	maxResponseSize = 1 << 20
)

// apiBaseURL is a variable so tests can point the client at a local server.
var apiBaseURL = "https://api.telegram.org/bot"

// APIError is an unsuccessful Bot API response.
type APIError struct {
	StatusCode  int
	Description string
	// RetryAfter is the wait Telegram asks for before the next request.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("telegram API error (status %d): %s", e.StatusCode, e.Description)
}

// Temporary reports whether the request may succeed if sent again.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Client represents a Telegram Bot API client
type Client struct {
	botToken      string
	chatID        string
	httpClient    *http.Client
	maxRetries    int
	retryInterval time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("chat ID is required")
	}

	return &Client{
		botToken: botToken,
		chatID:   chatID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:    maxRetries,
		retryInterval: time.Second,
	}, nil
}

// SendMessage sends an HTML-formatted message to the configured chat.
// Network errors, 429 and 5xx responses are retried with exponential
// backoff, never sooner than a retry_after the API returned.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("message text is required")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  c.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s%s/sendMessage", apiBaseURL, c.botToken)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0
	wait := &floodWait{BackOff: b}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.post(ctx, endpoint, payload)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !apiErr.Temporary() {
				return backoff.Permanent(err)
			}
			wait.last = apiErr
		}
		return err
	}

	notify := func(err error, d time.Duration) {
		logger.Warn("Telegram send failed, retrying", logger.Fields{
			"attempt": attempt,
			"wait":    d.String(),
			"error":   err.Error(),
		})
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(wait, uint64(c.maxRetries)), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}

// post sends one sendMessage request.
func (c *Client) post(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Description: strings.TrimSpace(string(body))}
		}
		return backoff.Permanent(fmt.Errorf("parsing response: %w", err))
	}

	if resp.StatusCode == http.StatusOK && result.OK {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Description: result.Description}
	if result.ErrorCode != 0 {
		apiErr.StatusCode = result.ErrorCode
	}
	if result.Parameters != nil {
		apiErr.RetryAfter = time.Duration(result.Parameters.RetryAfter) * time.Second
	}
	return apiErr
}

// floodWait stretches the backoff delay to the last retry_after.
type floodWait struct {
	backoff.BackOff
	last *APIError
}

func (f *floodWait) NextBackOff() time.Duration {
	d := f.BackOff.NextBackOff()
	if d != backoff.Stop && f.last != nil && f.last.RetryAfter > d {
		d = f.last.RetryAfter
	}
	return d
}
