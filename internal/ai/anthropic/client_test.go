package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	if _, err := New(Config{APIKey: " "}); err == nil {
		t.Fatalf("expected error for missing api key")
	}

	c, err := New(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Model() != DefaultModel || c.maxTokens != defaultMaxTokens || c.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestSend(t *testing.T) {
	var got messagesRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"Summary: a"},{"type":"text","text":"\nScore: 4"}]}`)
	}))
	defer server.Close()

	c, err := New(Config{APIKey: "key", BaseURL: server.URL + "/", MaxTokens: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := c.Send(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Summary: a\nScore: 4" {
		t.Fatalf("expected joined content blocks, got %q", out)
	}
	if got.Model != DefaultModel || got.MaxTokens != 100 || got.Temperature != temperature {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "prompt" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		expect string
	}{
		{name: "error envelope", status: http.StatusTooManyRequests, body: `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, expect: "rate_limit_error"},
		{name: "plain body", status: http.StatusBadGateway, body: "upstream", expect: "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c, err := New(Config{APIKey: "key", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			_, err = c.Send(context.Background(), "prompt")
			if err == nil || !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("expected error containing %q, got %v", tt.expect, err)
			}
		})
	}
}
