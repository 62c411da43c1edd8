package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/resolv-sh/resolv-gateway/internal/config"
)

func TestOpenRouterClientStreams(t *testing.T) {
	var gotReq CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Title") != "Resolv IDE" {
			t.Errorf("x-title = %q", r.Header.Get("X-Title"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
	}))
	defer srv.Close()

	client := NewOpenRouterClient(config.UpstreamConfig{
		BaseURL:       srv.URL + "/api/v1/",
		APIKey:        "sk-test",
		Title:         "Resolv IDE",
		HeaderTimeout: 5 * time.Second,
	})
	body, err := client.Open(context.Background(), CompletionRequest{
		Model:    "anthropic/claude-3.5-sonnet",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Stream:   true,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sink := &recordingSink{}
	Pump(context.Background(), body, sink)
	if len(sink.events) != 2 || sink.events[0].Type != EventContent {
		t.Fatalf("events = %+v", sink.events)
	}
	if !gotReq.Stream || gotReq.Model != "anthropic/claude-3.5-sonnet" {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestOpenRouterClientNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenRouterClient(config.UpstreamConfig{BaseURL: srv.URL})
	_, err := client.Open(context.Background(), CompletionRequest{Model: "m"})
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("Open() error = %v, want UpstreamError", err)
	}
	if upstreamErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", upstreamErr.StatusCode)
	}
	if StatusText(err) != "Too Many Requests" {
		t.Fatalf("StatusText() = %q", StatusText(err))
	}
}

func TestOpenRouterClientCancelledBeforeHeaders(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	client := NewOpenRouterClient(config.UpstreamConfig{BaseURL: srv.URL})
	_, err := client.Open(ctx, CompletionRequest{Model: "m"})
	if !errors.Is(err, ErrClientGone) {
		t.Fatalf("Open() error = %v, want ErrClientGone", err)
	}
	if !IsDisconnect(err) {
		t.Fatalf("IsDisconnect() = false")
	}
}
