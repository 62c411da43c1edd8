// Package chat turns an editor chat request into a metered upstream stream.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/resolv-sh/resolv-gateway/internal/catalog"
	"github.com/resolv-sh/resolv-gateway/internal/metrics"
	"github.com/resolv-sh/resolv-gateway/internal/prompt"
	"github.com/resolv-sh/resolv-gateway/internal/relay"
	"github.com/resolv-sh/resolv-gateway/internal/usage"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidModel is returned for model ids missing from the catalog.
	ErrInvalidModel = errors.New("chat: invalid model id")
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

// Request is the body of POST /chat.
type Request struct {
	Mode             string               `json:"mode"`
	ModelID          string               `json:"modelId"`
	Message          string               `json:"message"`
	Messages         []relay.Message      `json:"messages"`
	Context          *prompt.ContextFiles `json:"context"`
	ExpertStep       string               `json:"expertStep"`
	IncludeReasoning *bool                `json:"include_reasoning"`
	SessionID        string               `json:"session_id"`
}

// Prepared is a validated request ready to send upstream.
type Prepared struct {
	UserID      string
	RequestID   string
	SessionID   string
	ModelID     string
	IsTurnStart bool
	PromptChars int64
	Upstream    relay.CompletionRequest
}

// ModelLookup resolves catalog entries.
type ModelLookup interface {
	Lookup(id string) (catalog.Model, bool)
}

// CostEstimator prices token counts before markup.
type CostEstimator interface {
	PriceFromTokens(modelID string, promptTokens, completionTokens int64) float64
}

// ChargeSubmitter hands finished calls to the ledger without waiting.
type ChargeSubmitter interface {
	Submit(ch usage.Charge)
}

// Service orchestrates one chat call.
type Service struct {
	models   ModelLookup
	upstream relay.Upstream
	pricer   CostEstimator
	charges  ChargeSubmitter
}

// NewService constructs a Service.
func NewService(models ModelLookup, upstream relay.Upstream, pricer CostEstimator, charges ChargeSubmitter) *Service {
	return &Service{models: models, upstream: upstream, pricer: pricer, charges: charges}
}

// Prepare validates req and assembles the upstream payload.
func (s *Service) Prepare(userID, requestID string, req Request) (*Prepared, error) {
	conversation := req.Messages
	if len(conversation) == 0 && strings.TrimSpace(req.Message) != "" {
		conversation = []relay.Message{{Role: roleUser, Content: req.Message}}
	}

	modelID := strings.TrimSpace(req.ModelID)
	if _, ok := s.models.Lookup(modelID); !ok {
		return nil, ErrInvalidModel
	}

	system := prompt.SystemPrompt(req.Mode, req.ExpertStep)
	dynamic := prompt.DynamicContext(req.Context)

	promptChars := relay.CountChars(system) + relay.CountChars(dynamic)
	for _, m := range conversation {
		promptChars += relay.CountChars(m.Content)
	}

	messages := make([]relay.Message, 0, len(conversation)+2)
	messages = append(messages,
		relay.Message{Role: roleSystem, Content: system, CacheControl: &relay.CacheControl{Type: "ephemeral"}},
		relay.Message{Role: roleSystem, Content: dynamic},
	)
	messages = append(messages, conversation...)

	includeReasoning := true
	if req.IncludeReasoning != nil {
		includeReasoning = *req.IncludeReasoning
	}

	p := &Prepared{
		UserID:      userID,
		RequestID:   requestID,
		SessionID:   strings.TrimSpace(req.SessionID),
		ModelID:     modelID,
		IsTurnStart: IsTurnStart(conversation),
		PromptChars: promptChars,
		Upstream: relay.CompletionRequest{
			Model:            modelID,
			Messages:         messages,
			Stream:           true,
			IncludeReasoning: includeReasoning,
			Tools:            prompt.Tools(req.Mode),
		},
	}
	log.WithFields(log.Fields{
		"user_id":    userID,
		"session_id": p.SessionID,
		"request_id": requestID,
		"turn_start": p.IsTurnStart,
		"messages":   len(conversation),
	}).Info("chat: request prepared")
	return p, nil
}

// IsTurnStart reports whether the history holds no assistant message.
func IsTurnStart(messages []relay.Message) bool {
	for _, m := range messages {
		if m.Role == roleAssistant {
			return false
		}
	}
	return true
}

// Open starts the upstream call. Errors are *relay.UpstreamError,
// relay.ErrClientGone or transport failures.
func (s *Service) Open(ctx context.Context, p *Prepared) (io.ReadCloser, error) {
	return s.upstream.Open(ctx, p.Upstream)
}

// Stream relays body to sink and then bills what was delivered. It is the
// only place a successful upstream call is finalized.
func (s *Service) Stream(ctx context.Context, p *Prepared, body io.ReadCloser, sink relay.Sink) relay.Outcome {
	out := relay.Pump(ctx, body, sink)
	switch {
	case out.Err != nil:
		metrics.ChatRequests.WithLabelValues("stream_error").Inc()
	case out.Disconnected:
		metrics.ChatRequests.WithLabelValues("disconnected").Inc()
	default:
		metrics.ChatRequests.WithLabelValues("completed").Inc()
	}
	s.finalize(p, out)
	return out
}

func (s *Service) finalize(p *Prepared, out relay.Outcome) {
	entry := log.WithFields(log.Fields{
		"user_id":    p.UserID,
		"session_id": p.SessionID,
		"model":      p.ModelID,
		"request_id": p.RequestID,
	})
	resolved := relay.ResolveUsage(out.Tap, p.PromptChars)
	if resolved.IsZero() {
		entry.Warn("chat: no usage captured, nothing billed")
		return
	}
	if resolved.Estimated {
		entry.Infof("chat: usage estimated from characters: %din/%dout", resolved.PromptTokens, resolved.CompletionTokens)
	}
	base := s.pricer.PriceFromTokens(p.ModelID, resolved.PromptTokens, resolved.CompletionTokens)
	entry.WithField("base_cost", base).Infof("chat: billing %din/%dout", resolved.PromptTokens, resolved.CompletionTokens)

	s.charges.Submit(usage.Charge{
		UserID:           p.UserID,
		ModelID:          p.ModelID,
		BaseCost:         base,
		SessionID:        p.SessionID,
		IsTurnStart:      p.IsTurnStart,
		PromptTokens:     resolved.PromptTokens,
		CompletionTokens: resolved.CompletionTokens,
		Estimated:        resolved.Estimated,
		RequestID:        p.RequestID,
	})
}

// ReportUpstreamError sends the terminal error and done events for a call
// that never produced a stream. Nothing is billed.
func ReportUpstreamError(sink relay.Sink, err error) {
	metrics.ChatRequests.WithLabelValues("upstream_error").Inc()
	if errSend := sink.Send(relay.ErrorEvent("OpenRouter Error: " + relay.StatusText(err))); errSend != nil {
		return
	}
	_ = sink.Send(relay.DoneEvent())
}
