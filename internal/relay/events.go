package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// EventType names an event in the caller-facing stream.
type EventType string

// Caller-facing event types.
const (
	EventContent   EventType = "content"
	EventReasoning EventType = "reasoning"
	EventToolCall  EventType = "tool_call"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// Event is one caller-facing record.
type Event struct {
	Type EventType
	Data any
}

type contentPayload struct {
	Delta string `json:"delta"`
}

type reasoningPayload struct {
	Reasoning string `json:"reasoning"`
}

type toolCallPayload struct {
	ToolCalls json.RawMessage `json:"tool_calls"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ContentEvent wraps an output text delta.
func ContentEvent(delta string) Event {
	return Event{Type: EventContent, Data: contentPayload{Delta: delta}}
}

// ReasoningEvent wraps a reasoning text delta.
func ReasoningEvent(text string) Event {
	return Event{Type: EventReasoning, Data: reasoningPayload{Reasoning: text}}
}

// ToolCallEvent wraps raw tool call fragments.
func ToolCallEvent(raw json.RawMessage) Event {
	return Event{Type: EventToolCall, Data: toolCallPayload{ToolCalls: raw}}
}

// ErrorEvent wraps a caller-visible error message.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Data: errorPayload{Message: message}}
}

// DoneEvent is the terminal event.
func DoneEvent() Event { return Event{Type: EventDone, Data: struct{}{}} }

// Sink receives caller-facing events in order.
type Sink interface {
	Send(Event) error
}

// EncodeEvent renders an event in SSE framing.
func EncodeEvent(ev Event) ([]byte, error) {
	var data bytes.Buffer
	enc := json.NewEncoder(&data)
	enc.SetEscapeHTML(false)
	if errEncode := enc.Encode(ev.Data); errEncode != nil {
		return nil, fmt.Errorf("relay: encode %s event: %w", ev.Type, errEncode)
	}
	payload := bytes.TrimSuffix(data.Bytes(), []byte{'\n'})

	out := make([]byte, 0, len(payload)+len(ev.Type)+16)
	out = append(out, "event: "...)
	out = append(out, ev.Type...)
	out = append(out, "\ndata: "...)
	out = append(out, payload...)
	out = append(out, "\n\n"...)
	return out, nil
}

// SSEWriter writes events to an HTTP response, flushing after each one.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter wraps w. Flushing is used when w implements http.Flusher.
func NewSSEWriter(w io.Writer) *SSEWriter {
	s := &SSEWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Send implements Sink.
func (s *SSEWriter) Send(ev Event) error {
	frame, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if _, errWrite := s.w.Write(frame); errWrite != nil {
		return errWrite
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
