package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/conductr/internal/shared"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	noSleep := NewRetryPolicy(3, time.Millisecond, time.Millisecond).
		WithSleeper(func(context.Context, time.Duration) error { return nil })
	return NewLLMClient(
		shared.LLMConfig{APIKey: "sk-test", BaseURL: server.URL, Model: "test-model"},
		WithLLMHTTPClient(server.Client()),
		WithLLMRetryPolicy(noSleep),
	)
}

func TestLLMClient(t *testing.T) {
	t.Run("Complete", func(t *testing.T) {
		var got chatCompletionRequest
		client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
			}
			json.NewDecoder(r.Body).Decode(&got)
			fmt.Fprint(w, `{"choices":[{"message":{"content":"Here you go: {\"composer\":\"Gustav Mahler\"}"}}]}`)
		})

		out, err := client.Complete(context.Background(), "system", "Mahler 5", 0.1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out != `Here you go: {"composer":"Gustav Mahler"}` {
			t.Errorf("unexpected content %q", out)
		}
		if got.Model != "test-model" || got.Temperature != 0.1 || len(got.Messages) != 2 {
			t.Errorf("unexpected request %+v", got)
		}
	})

	t.Run("retries empty content", func(t *testing.T) {
		calls := 0
		client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				fmt.Fprint(w, `{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`)
				return
			}
			fmt.Fprint(w, `{"choices":[{"message":{"content":"4, 5"}}]}`)
		})

		out, err := client.Complete(context.Background(), "system", "user", 0)
		if err != nil || out != "4, 5" {
			t.Fatalf("expected retried content, got %q err %v", out, err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("gives up on persistent 5xx", func(t *testing.T) {
		calls := 0
		client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			http.Error(w, "overloaded", http.StatusBadGateway)
		})

		_, err := client.Complete(context.Background(), "system", "user", 0)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected 502 StatusError, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("requires api key", func(t *testing.T) {
		client := NewLLMClient(shared.LLMConfig{})
		_, err := client.Complete(context.Background(), "system", "user", 0)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "bare object", input: `{"a":1}`, want: `{"a":1}`, wantOK: true},
		{name: "surrounding prose", input: "Sure!\n{\"a\":{\"b\":2}} hope that helps {\"c\":3}", want: `{"a":{"b":2}}`, wantOK: true},
		{name: "code fence", input: "```json\n{\"isComplete\": true}\n```", want: `{"isComplete": true}`, wantOK: true},
		{name: "braces in strings", input: `{"work":"Symphony {No. 5}"}`, want: `{"work":"Symphony {No. 5}"}`, wantOK: true},
		{name: "escaped quote", input: `{"work":"the \"Titan\" }"}`, want: `{"work":"the \"Titan\" }"}`, wantOK: true},
		{name: "unbalanced then balanced", input: `{ oops { "a": 1 }`, want: `{ "a": 1 }`, wantOK: true},
		{name: "no object", input: "I am not sure which piece you mean.", wantOK: false},
		{name: "unterminated", input: `{"a": 1`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractJSONObject(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDecodeJSONObject(t *testing.T) {
	var v struct {
		IsComplete bool `json:"isComplete"`
	}
	if err := DecodeJSONObject("verdict: {\"isComplete\": true}", &v); err != nil || !v.IsComplete {
		t.Errorf("expected decoded verdict, got %+v err %v", v, err)
	}
	if err := DecodeJSONObject("none", &v); !errors.Is(err, ErrNoJSONObject) {
		t.Errorf("expected ErrNoJSONObject, got %v", err)
	}
	if err := DecodeJSONObject(`{"isComplete": "yes"}`, &v); err == nil {
		t.Error("expected type error for non-bool isComplete")
	}
}
