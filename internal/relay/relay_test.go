package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"
)

type recordingSink struct {
	events  []Event
	failAt  int
	written int
}

func (s *recordingSink) Send(ev Event) error {
	if s.failAt > 0 && s.written+1 >= s.failAt {
		return syscall.EPIPE
	}
	s.written++
	s.events = append(s.events, ev)
	return nil
}

// chunkedReader yields the payload in fixed-size pieces.
type chunkedReader struct {
	data   []byte
	size   int
	err    error
	closed bool
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func (r *chunkedReader) Close() error {
	r.closed = true
	return nil
}

const sampleStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n" +
	": keep-alive\n" +
	"\n" +
	"data: {\"choices\":[{\"delta\":{\"reasoning\":\"thinking\"}}]}\n" +
	"data: {not json}\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo, wörld\"}}]}\r\n" +
	"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"name\":\"read_file\"}}]}}]}\n" +
	"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":3}}\n" +
	"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":12,\"completion_tokens\":5}}\n" +
	"data: [DONE]\n"

func encodeAll(t *testing.T, events []Event) string {
	t.Helper()
	var b strings.Builder
	for _, ev := range events {
		frame, err := EncodeEvent(ev)
		if err != nil {
			t.Fatalf("EncodeEvent() error = %v", err)
		}
		b.Write(frame)
	}
	return b.String()
}

func TestPumpIsIndependentOfChunkBoundaries(t *testing.T) {
	var want string
	var wantTap Tap
	for _, size := range []int{1, 2, 3, 7, 16, 64, len(sampleStream)} {
		sink := &recordingSink{}
		body := &chunkedReader{data: []byte(sampleStream), size: size}
		out := Pump(context.Background(), body, sink)
		if !body.closed {
			t.Fatalf("size %d: body not closed", size)
		}
		got := encodeAll(t, sink.events)
		if want == "" {
			want = got
			wantTap = out.Tap
			continue
		}
		if got != want {
			t.Fatalf("size %d: output differs\n got: %q\nwant: %q", size, got, want)
		}
		if out.Tap != wantTap {
			t.Fatalf("size %d: tap = %+v, want %+v", size, out.Tap, wantTap)
		}
	}
}

func TestPumpForwardsInOrderAndEndsWithSingleDone(t *testing.T) {
	sink := &recordingSink{}
	out := Pump(context.Background(), &chunkedReader{data: []byte(sampleStream), size: 5}, sink)

	wantTypes := []EventType{EventContent, EventReasoning, EventContent, EventToolCall, EventDone}
	if len(sink.events) != len(wantTypes) {
		t.Fatalf("events = %d, want %d: %+v", len(sink.events), len(wantTypes), sink.events)
	}
	for i, ev := range sink.events {
		if ev.Type != wantTypes[i] {
			t.Fatalf("event %d type = %s, want %s", i, ev.Type, wantTypes[i])
		}
	}
	if out.Disconnected || out.Err != nil {
		t.Fatalf("outcome = %+v, want clean", out)
	}
	if out.Tap.PromptTokens != 12 || out.Tap.CompletionTokens != 5 {
		t.Fatalf("tap usage = %d/%d, want last summary 12/5", out.Tap.PromptTokens, out.Tap.CompletionTokens)
	}
	if out.Tap.CompletionChars != int64(len([]rune("Hello, wörld"))) {
		t.Fatalf("completion chars = %d", out.Tap.CompletionChars)
	}
}

func TestPumpFlushesUnterminatedFinalLine(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":4,\"completion_tokens\":2}}"
	sink := &recordingSink{}
	out := Pump(context.Background(), &chunkedReader{data: []byte(stream), size: 8}, sink)
	if out.Tap.PromptTokens != 4 || out.Tap.CompletionTokens != 2 {
		t.Fatalf("tap = %+v, want usage from unterminated line", out.Tap)
	}
}

func TestPumpForwardsInStreamErrors(t *testing.T) {
	stream := "data: {\"error\":{\"message\":\"Rate limit exceeded\",\"code\":429}}\n"
	sink := &recordingSink{}
	Pump(context.Background(), &chunkedReader{data: []byte(stream), size: 64}, sink)
	if len(sink.events) != 2 || sink.events[0].Type != EventError || sink.events[1].Type != EventDone {
		t.Fatalf("events = %+v, want error then done", sink.events)
	}
}

func TestPumpReportsInterruptedStream(t *testing.T) {
	sink := &recordingSink{}
	body := &chunkedReader{
		data: []byte("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"),
		size: 64,
		err:  errors.New("tls: bad record MAC"),
	}
	out := Pump(context.Background(), body, sink)
	if out.Err == nil || out.Disconnected {
		t.Fatalf("outcome = %+v, want read error", out)
	}
	n := len(sink.events)
	if n < 2 || sink.events[n-2].Type != EventError || sink.events[n-1].Type != EventDone {
		t.Fatalf("events = %+v, want trailing error and done", sink.events)
	}
	frame, _ := EncodeEvent(sink.events[n-2])
	if !strings.Contains(string(frame), "Stream interrupted") {
		t.Fatalf("error frame = %q", frame)
	}
}

func TestPumpTreatsResetAsDisconnect(t *testing.T) {
	sink := &recordingSink{}
	body := &chunkedReader{
		data: []byte("data: {\"choices\":[{\"delta\":{\"content\":\"abcd\"}}]}\n"),
		size: 64,
		err:  syscall.ECONNRESET,
	}
	out := Pump(context.Background(), body, sink)
	if !out.Disconnected || out.Err != nil {
		t.Fatalf("outcome = %+v, want disconnect", out)
	}
	for _, ev := range sink.events {
		if ev.Type == EventError {
			t.Fatalf("unexpected error event on disconnect")
		}
	}
	if out.Tap.CompletionChars != 4 {
		t.Fatalf("completion chars = %d, want 4", out.Tap.CompletionChars)
	}
}

func TestPumpStopsWhenCallerGoes(t *testing.T) {
	sink := &recordingSink{failAt: 2}
	body := &chunkedReader{data: []byte(sampleStream), size: len(sampleStream)}
	out := Pump(context.Background(), body, sink)
	if !out.Disconnected {
		t.Fatalf("outcome = %+v, want disconnected", out)
	}
	if !body.closed {
		t.Fatalf("body not closed")
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want only the first", len(sink.events))
	}
}

func TestPumpStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}
	body := &chunkedReader{data: []byte(sampleStream), size: 4}
	out := Pump(ctx, body, sink)
	if !out.Disconnected {
		t.Fatalf("outcome = %+v, want disconnected", out)
	}
	if !body.closed {
		t.Fatalf("body not closed")
	}
}

func TestResolveUsage(t *testing.T) {
	got := ResolveUsage(Tap{CompletionChars: 400}, 2000)
	if got.PromptTokens != 500 || got.CompletionTokens != 100 || !got.Estimated {
		t.Fatalf("ResolveUsage() = %+v, want estimated 500/100", got)
	}
	got = ResolveUsage(Tap{PromptTokens: 7, CompletionTokens: 0, CompletionChars: 400, HasUsage: true}, 2000)
	if got.PromptTokens != 7 || got.CompletionTokens != 0 || got.Estimated {
		t.Fatalf("ResolveUsage() = %+v, want reported 7/0", got)
	}
	got = ResolveUsage(Tap{HasUsage: true}, 0)
	if !got.IsZero() {
		t.Fatalf("ResolveUsage() = %+v, want zero", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := map[int64]int64{0: 0, -3: 0, 1: 1, 4: 1, 5: 2, 2000: 500}
	for chars, want := range cases {
		if got := EstimateTokens(chars); got != want {
			t.Fatalf("EstimateTokens(%d) = %d, want %d", chars, got, want)
		}
	}
}

func TestIsDisconnect(t *testing.T) {
	if !IsDisconnect(context.Canceled) || !IsDisconnect(syscall.EPIPE) || !IsDisconnect(io.ErrUnexpectedEOF) {
		t.Fatalf("expected benign disconnects")
	}
	if IsDisconnect(errors.New("boom")) || IsDisconnect(nil) {
		t.Fatalf("unexpected disconnect classification")
	}
}
