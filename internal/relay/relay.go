// Package relay forwards an upstream completion stream to a caller while
// collecting the signals needed to bill it.
package relay

import (
	"context"
	"io"

	"github.com/resolv-sh/resolv-gateway/internal/metrics"
	log "github.com/sirupsen/logrus"
)

const readBufferSize = 32 * 1024

// streamInterruptedMessage is shown to a caller still listening when the
// stream fails for a reason other than a disconnect.
const streamInterruptedMessage = "Stream interrupted"

// Outcome describes how a relayed stream ended.
type Outcome struct {
	Tap          Tap
	Disconnected bool  // The caller or upstream went away.
	Err          error // Unexpected read failure, already reported to the caller.
	Events       int   // Content, reasoning and tool call events forwarded.
}

// Pump reads body until it ends, forwarding events to sink in upstream
// order. It always sends a final done event (best effort when the caller is
// gone) and always closes body. Malformed records are dropped.
func Pump(ctx context.Context, body io.ReadCloser, sink Sink) Outcome {
	var out Outcome
	defer func() { _ = body.Close() }()

	sinkGone := false
	send := func(ev Event) bool {
		if sinkGone {
			return false
		}
		if errSend := sink.Send(ev); errSend != nil {
			sinkGone = true
			out.Disconnected = true
			log.WithError(errSend).Debug("relay: caller write failed")
			return false
		}
		metrics.RelayEvents.WithLabelValues(string(ev.Type)).Inc()
		return true
	}
	handle := func(line string) {
		if sinkGone {
			return
		}
		chunk, ok := ParseRecord(line)
		if !ok {
			return
		}
		out.Tap.observeUsage(chunk)
		delta := chunk.delta()
		if delta.Content != "" && send(ContentEvent(delta.Content)) {
			out.Tap.CompletionChars += CountChars(delta.Content)
			out.Events++
		}
		if delta.Reasoning != "" && send(ReasoningEvent(delta.Reasoning)) {
			out.Events++
		}
		if hasToolCalls(delta.ToolCalls) && send(ToolCallEvent(delta.ToolCalls)) {
			out.Events++
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			send(ErrorEvent(chunk.Error.Message))
		}
	}

	var decoder LineDecoder
	buf := make([]byte, readBufferSize)
	for !sinkGone {
		if ctx.Err() != nil {
			out.Disconnected = true
			break
		}
		n, errRead := body.Read(buf)
		if n > 0 {
			for _, line := range decoder.Feed(buf[:n]) {
				handle(line)
			}
		}
		if errRead == nil {
			continue
		}
		if errRead == io.EOF {
			if line, ok := decoder.Flush(); ok {
				handle(line)
			}
			break
		}
		if ctx.Err() != nil || IsDisconnect(errRead) {
			out.Disconnected = true
			log.WithError(errRead).Debug("relay: stream ended by disconnect")
			break
		}
		out.Err = errRead
		log.WithError(errRead).Error("relay: stream read failed")
		send(ErrorEvent(streamInterruptedMessage))
		break
	}

	send(DoneEvent())
	return out
}
