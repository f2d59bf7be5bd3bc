package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://market.example.com/", "test-key")

		if c.baseURL != "https://market.example.com" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
		}
		if c.apiKey != "test-key" {
			t.Errorf("apiKey = %q, want %q", c.apiKey, "test-key")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.sendLimiter != nil {
			t.Error("sendLimiter should be nil by default")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://market.example.com", "key",
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
			WithSendRate(2, 0),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 || c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retries = %d/%v, want 10/500ms", c.maxRetries, c.retryBackoff)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.sendLimiter == nil || c.sendLimiter.Burst() != 1 {
			t.Error("send limiter not configured with burst 1")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://market.example.com", "", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Not Found"}
	if err.Error() != "chat api error 404: Not Found" {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
		{499, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("headers and JSON body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q", r.Header.Get("Accept"))
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type header = %q", r.Header.Get("Content-Type"))
			}
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"a":1}` {
				t.Errorf("body = %s", body)
			}
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-key")
		body, err := c.doRequest(context.Background(), http.MethodPost, "/test", nil, map[string]int{"a": 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q", string(body))
		}
	})

	t.Run("error message from body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"detail": "not a participant"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 403 || apiErr.Message != "not a participant" {
			t.Errorf("apiErr = %d %q", apiErr.StatusCode, apiErr.Message)
		}
	})

	t.Run("error message falls back to status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`<html>bad gateway</html>`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Bad Gateway" {
			t.Errorf("err = %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if atomic.LoadInt32(&attempts) != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err == nil {
			t.Fatal("expected error")
		}
		if atomic.LoadInt32(&attempts) != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(2, 5*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("err = %v, want max retries exceeded", err)
		}
	})
}

func TestSendMessage(t *testing.T) {
	t.Run("posts and decodes echo", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			if r.Method != http.MethodPost || r.URL.Path != "/api/chat/message" {
				t.Errorf("request = %s %s", r.Method, r.URL.Path)
			}
			var req SendMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if req.ConversationID != "c1" || req.SenderID != "u1" || req.Content != "still for sale?" {
				t.Errorf("req = %+v", req)
			}
			w.Write([]byte(`{"id":101,"conversation_id":"c1","sender_id":"u1","content":"still for sale?","created_at":"2024-01-15T12:00:00Z"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		msg, err := c.SendMessage(context.Background(), "c1", "u1", "still for sale?")
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		if msg.ID != "101" || msg.Text != "still for sale?" {
			t.Errorf("msg = %+v", msg)
		}
		if !msg.Timestamp.Equal(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("Timestamp = %v", msg.Timestamp)
		}
	})

	t.Run("server errors are not retried", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithRetries(3, time.Millisecond))
		_, err := c.SendMessage(context.Background(), "c1", "u1", "hello")

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
			t.Fatalf("err = %v, want wrapped 500 APIError", err)
		}
		if atomic.LoadInt32(&attempts) != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("blank text", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:0", "")
		if _, err := c.SendMessage(context.Background(), "c1", "u1", "  "); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("err = %v, want ErrEmptyMessage", err)
		}
	})

	t.Run("unparseable echo", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		msg, err := c.SendMessage(context.Background(), "c1", "u1", "hello")
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		if msg.Text != "hello" || msg.ConversationID != "c1" {
			t.Errorf("msg = %+v", msg)
		}
	})

	t.Run("rate limited send honours context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"m"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithSendRate(0.001, 1))
		if _, err := c.SendMessage(context.Background(), "c1", "u1", "first"); err != nil {
			t.Fatalf("first send: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := c.SendMessage(ctx, "c1", "u1", "second"); err == nil {
			t.Error("expected limiter to reject second send")
		}
	})
}

func TestGetMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id":"m2","content":"b","created_at":"2024-01-15T12:00:02Z"},{"id":"m1","content":"a","created_at":"2024-01-15T12:00:01Z"},{"nope":true}]`},
		{"wrapped", `{"messages":[{"id":"m2","content":"b"},{"id":"m1","content":"a"},"junk"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/chat/conversations/c 1/messages" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL, "")
			msgs, err := c.GetMessages(context.Background(), "c 1")
			if err != nil {
				t.Fatalf("GetMessages: %v", err)
			}
			if len(msgs) != 2 {
				t.Fatalf("len = %d, want 2 (malformed entry skipped)", len(msgs))
			}
			if msgs[0].ID != "m2" || msgs[1].ID != "m1" {
				t.Errorf("ids = %s,%s", msgs[0].ID, msgs[1].ID)
			}
		})
	}
}

func TestListConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/conversations" || r.URL.Query().Get("user_id") != "u1" {
			t.Errorf("request = %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`[{"id":7,"listing_id":"l9","buyer_id":"u1","seller_id":"u2","listing_title":"Road bike","last_message":"deal"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	convs, err := c.ListConversations(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("len = %d, want 1", len(convs))
	}
	if convs[0].ID != "7" || convs[0].SellerID != "u2" || convs[0].ListingName != "Road bike" {
		t.Errorf("conv = %+v", convs[0])
	}
}
