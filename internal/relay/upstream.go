package relay

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

	"github.com/resolv-sh/resolv-gateway/internal/config"
	"github.com/resolv-sh/resolv-gateway/internal/metrics"
)

// ErrClientGone reports that the caller disconnected before the upstream
// response was established.
var ErrClientGone = errors.New("relay: client disconnected before upstream response")

// CacheControl marks a message as cacheable by providers that support it.
type CacheControl struct {
	Type string `json:"type"`
}

// Message is one conversation message sent upstream.
type Message struct {
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	Name         string          `json:"name,omitempty"`
	ToolCalls    json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// CompletionRequest is the streaming chat completion payload.
type CompletionRequest struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	Stream           bool            `json:"stream"`
	IncludeReasoning bool            `json:"include_reasoning"`
	Tools            json.RawMessage `json:"tools,omitempty"`
}

// UpstreamError is a non-2xx answer from the completion API.
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("relay: upstream returned %s", e.Status)
}

// Upstream opens streaming completions.
type Upstream interface {
	Open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error)
}

// OpenRouterClient calls an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	endpoint string
	apiKey   string
	referer  string
	title    string
	client   *http.Client
}

// NewOpenRouterClient builds a client. The HTTP client has no overall
// timeout because responses stream for as long as the model generates;
// only the wait for response headers is bounded.
func NewOpenRouterClient(cfg config.UpstreamConfig) *OpenRouterClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.HeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = cfg.HeaderTimeout
	}
	return &OpenRouterClient{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		referer:  cfg.Referer,
		title:    cfg.Title,
		client:   &http.Client{Transport: transport},
	}
}

// Open posts req and returns the response body on a 2xx status. Cancelling
// ctx aborts the request and any later body reads.
func (c *OpenRouterClient) Open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	payload, errMarshal := json.Marshal(req)
	if errMarshal != nil {
		return nil, fmt.Errorf("relay: encode request: %w", errMarshal)
	}
	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if errReq != nil {
		return nil, fmt.Errorf("relay: build request: %w", errReq)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	started := time.Now()
	resp, errDo := c.client.Do(httpReq)
	if errDo != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrClientGone, errDo)
		}
		return nil, fmt.Errorf("relay: upstream request: %w", errDo)
	}
	metrics.UpstreamLatency.WithLabelValues(req.Model).Observe(time.Since(started).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp.Body, nil
}

// StatusText returns the reason phrase for an upstream failure, for display.
func StatusText(err error) string {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		if text := http.StatusText(upstreamErr.StatusCode); text != "" {
			return text
		}
		return upstreamErr.Status
	}
	return "Service Unavailable"
}
