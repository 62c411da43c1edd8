package relay

import "unicode/utf8"

// charsPerToken is the fallback estimation ratio.
const charsPerToken = 4

// Tap accumulates billing signals while a stream is relayed.
type Tap struct {
	PromptTokens     int64
	CompletionTokens int64
	HasUsage         bool
	CompletionChars  int64 // Characters of content delivered to the caller.
}

// observeUsage records a usage summary. Later summaries replace earlier ones.
func (t *Tap) observeUsage(c Chunk) {
	if c.Usage == nil {
		return
	}
	t.PromptTokens = c.Usage.PromptTokens
	t.CompletionTokens = c.Usage.CompletionTokens
	t.HasUsage = true
}

// Usage is the resolved token count for one upstream call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	Estimated        bool
}

// IsZero reports whether nothing is billable.
func (u Usage) IsZero() bool { return u.PromptTokens <= 0 && u.CompletionTokens <= 0 }

// ResolveUsage returns the upstream summary when it reports any tokens, and
// otherwise estimates from character counts.
func ResolveUsage(tap Tap, promptChars int64) Usage {
	if tap.PromptTokens > 0 || tap.CompletionTokens > 0 {
		return Usage{PromptTokens: tap.PromptTokens, CompletionTokens: tap.CompletionTokens}
	}
	return Usage{
		PromptTokens:     EstimateTokens(promptChars),
		CompletionTokens: EstimateTokens(tap.CompletionChars),
		Estimated:        true,
	}
}

// EstimateTokens returns ceil(chars / 4).
func EstimateTokens(chars int64) int64 {
	if chars <= 0 {
		return 0
	}
	return (chars + charsPerToken - 1) / charsPerToken
}

// CountChars counts characters (code points) in s.
func CountChars(s string) int64 {
	return int64(utf8.RuneCountInString(s))
}
