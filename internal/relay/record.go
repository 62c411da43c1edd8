package relay

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// Chunk is the subset of an upstream streaming chunk the relay reads.
type Chunk struct {
	Choices []ChunkChoice `json:"choices"`
	Usage   *ChunkUsage   `json:"usage"`
	Error   *ChunkError   `json:"error"`
}

// ChunkChoice carries one incremental delta.
type ChunkChoice struct {
	Delta ChunkDelta `json:"delta"`
}

// ChunkDelta holds incremental output.
type ChunkDelta struct {
	Content   string          `json:"content"`
	Reasoning string          `json:"reasoning"`
	ToolCalls json.RawMessage `json:"tool_calls"`
}

// ChunkUsage is the authoritative token summary.
type ChunkUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// ChunkError is an error reported inside an otherwise successful stream.
type ChunkError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// ParseRecord decodes one SSE line. It returns ok=false for blank lines,
// comments, non-data fields, the done sentinel and malformed payloads.
func ParseRecord(line string) (Chunk, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return Chunk{}, false
	}
	payload := strings.TrimSpace(trimmed[len(dataPrefix):])
	if payload == "" || payload == doneSentinel {
		return Chunk{}, false
	}
	var chunk Chunk
	if errUnmarshal := json.Unmarshal([]byte(payload), &chunk); errUnmarshal != nil {
		return Chunk{}, false
	}
	return chunk, true
}

// delta returns the first choice's delta, the only one the relay forwards.
func (c Chunk) delta() ChunkDelta {
	if len(c.Choices) == 0 {
		return ChunkDelta{}
	}
	return c.Choices[0].Delta
}

func hasToolCalls(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("[]"))
}
