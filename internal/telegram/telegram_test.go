package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withServer points the client at a local stand-in for the Bot API.
func withServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	originalURL := apiBaseURL
	apiBaseURL = server.URL + "/bot"
	t.Cleanup(func() { apiBaseURL = originalURL })

	return &Client{
		botToken:   "test-token",
		chatID:     "12345",
		httpClient: server.Client(),
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		botToken string
		chatID   string
		wantErr  bool
	}{
		{"valid", "token", "123", false},
		{"missing token", "", "123", true},
		{"missing chat", "token", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.botToken, tt.chatID)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendMessage_Success(t *testing.T) {
	var got map[string]interface{}
	client := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":123}}`))
	})

	if err := client.SendMessage(context.Background(), "Test message"); err != nil {
		t.Fatalf("SendMessage() unexpected error: %v", err)
	}
	if got["chat_id"] != "12345" || got["text"] != "Test message" || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusOK, `{"ok":false,"description":"Bad Request: chat not found"}`, "Bad Request"},
		{"description on 4xx", http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`, "status 400): Bad Request: can't parse entities"},
		{"http error", http.StatusInternalServerError, "Internal Server Error", "status 500): Internal Server Error"},
		{"malformed response", http.StatusOK, "not json", "parsing response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := withServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := client.SendMessage(context.Background(), "Test message")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("SendMessage() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSendMessage_EmptyText(t *testing.T) {
	client := &Client{botToken: "t", chatID: "c", httpClient: http.DefaultClient}
	if err := client.SendMessage(context.Background(), ""); err == nil {
		t.Error("expected error for empty message")
	}
}

func TestSendMessage_Retries(t *testing.T) {
	tests := []struct {
		name         string
		responses    []int
		wantErr      bool
		wantAttempts int32
	}{
		{"server error then success", []int{http.StatusBadGateway, http.StatusOK}, false, 2},
		{"rate limited then success", []int{http.StatusTooManyRequests, http.StatusOK}, false, 2},
		{"bad request is not retried", []int{http.StatusBadRequest, http.StatusOK}, true, 1},
		{"gives up", []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable}, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			client := withServer(t, func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&attempts, 1)
				status := tt.responses[len(tt.responses)-1]
				if int(n) <= len(tt.responses) {
					status = tt.responses[n-1]
				}
				w.WriteHeader(status)
				if status == http.StatusOK {
					w.Write([]byte(`{"ok":true}`))
					return
				}
				w.Write([]byte(`{"ok":false,"description":"try later","parameters":{"retry_after":0}}`))
			})
			client.maxRetries = 2
			client.retryInterval = time.Millisecond

			err := client.SendMessage(context.Background(), "Test message")
			if (err != nil) != tt.wantErr {
				t.Fatalf("SendMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestSendMessage_RetryAfter(t *testing.T) {
	client := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`))
	})

	err := client.SendMessage(context.Background(), "Test message")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("SendMessage() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.RetryAfter != 7*time.Second {
		t.Errorf("APIError = %+v, want status 429 and retry after 7s", apiErr)
	}
	if !apiErr.Temporary() {
		t.Error("429 should be temporary")
	}
}

func TestFloodWait(t *testing.T) {
	w := &floodWait{BackOff: &backoff.ZeroBackOff{}}
	if d := w.NextBackOff(); d != 0 {
		t.Errorf("NextBackOff() = %v, want 0 without a retry_after", d)
	}

	w.last = &APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 3 * time.Second}
	if d := w.NextBackOff(); d != 3*time.Second {
		t.Errorf("NextBackOff() = %v, want 3s", d)
	}

	stopped := &floodWait{BackOff: &backoff.StopBackOff{}, last: w.last}
	if d := stopped.NextBackOff(); d != backoff.Stop {
		t.Errorf("NextBackOff() = %v, want Stop", d)
	}
}

func TestSendMessage_ContextCancelled(t *testing.T) {
	client := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client.maxRetries = 5
	client.retryInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.SendMessage(ctx, "Test message")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SendMessage() error = %v, want context.DeadlineExceeded", err)
	}
}
