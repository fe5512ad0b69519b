package gemini

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/omnillm/omnillm/llm"

	"github.com/omnillm/omnillm/internal/sse"
)

// stream adapts the generativelanguage SSE stream to the canonical
// delta-chunk sequence.
//
// Each SSE event carries a full generateContentResponse rather than a delta,
// so content deltas are computed by tracking the cumulative text length
// across events. Function calls arrive whole, as one batch: once any event
// carries a functionCall part, the remaining events are drained and exactly
// one tool-call chunk is emitted in place of further content.
type stream struct {
	body    io.ReadCloser
	scanner *sse.Scanner

	mu       sync.Mutex
	chunk    *llm.DeltaChunk
	err      error
	done     bool
	usage    llm.Usage
	exact    bool
	seenText int
	release  sync.Once
	free     llm.ReleaseFunc
}

func newStream(body io.ReadCloser, inputTokens int64, release llm.ReleaseFunc) llm.Stream {
	return &stream{
		body:    body,
		scanner: sse.NewScanner(body),
		usage:   llm.Usage{InputTokens: inputTokens},
		free:    release,
	}
}

// Next implements llm.Stream.
func (s *stream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil || s.done {
		s.finishLocked()
		return false
	}

	for {
		payload, err := s.scanner.Next()
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = llm.WrapProviderFailure(llm.ProviderGemini, err)
			}
			s.finishLocked()
			return false
		}

		var resp generateContentResponse
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			s.done = true
			s.err = llm.NewProviderError(llm.ProviderGemini, 0, "malformed stream event: "+err.Error(), err)
			s.finishLocked()
			return false
		}

		s.recordUsageLocked(&resp)

		if len(resp.Candidates) == 0 {
			continue
		}
		parts := resp.Candidates[0].Content.Parts

		if calls := collectCalls(parts); len(calls) > 0 {
			// Later events repeat the full response, so the batch is
			// complete here; drain the rest only for trailing usage.
			s.drainLocked()
			s.done = true
			s.chunk = llm.NewToolCallChunk(calls)
			return true
		}

		if delta := s.textDeltaLocked(parts); delta != "" {
			s.chunk = llm.NewContentChunk(delta)
			if !s.exact {
				s.usage.OutputTokens += llm.EstimateTextTokens(delta)
			}
			return true
		}
		// Keep-alive or finish-only event; keep reading.
	}
}

// drainLocked reads the remaining events, capturing trailing usage metadata.
func (s *stream) drainLocked() {
	for {
		payload, err := s.scanner.Next()
		if err != nil {
			return
		}
		var resp generateContentResponse
		if json.Unmarshal([]byte(payload), &resp) != nil {
			continue
		}
		s.recordUsageLocked(&resp)
	}
}

// collectCalls extracts the function calls from one event's parts.
func collectCalls(parts []part) []llm.ToolCall {
	var calls []llm.ToolCall
	for _, p := range parts {
		if p.FunctionCall != nil {
			calls = append(calls, FromFunctionCall(p.FunctionCall, len(calls)))
		}
	}
	return calls
}

// textDeltaLocked joins the event's text parts and returns only the portion
// not seen in earlier events.
func (s *stream) textDeltaLocked(parts []part) string {
	var texts []string
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	full := strings.Join(texts, "\n")
	if len(full) <= s.seenText {
		return ""
	}
	delta := full[s.seenText:]
	s.seenText = len(full)
	return delta
}

func (s *stream) recordUsageLocked(resp *generateContentResponse) {
	if resp.UsageMetadata == nil {
		return
	}
	s.usage.InputTokens = resp.UsageMetadata.PromptTokenCount
	s.usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	s.exact = true
}

// Chunk implements llm.Stream.
func (s *stream) Chunk() *llm.DeltaChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunk
}

// Err implements llm.Stream.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Usage implements llm.Stream.
func (s *stream) Usage() *llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage
	return &u
}

// Close implements llm.Stream. Safe to call repeatedly.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.finishLocked()
	return nil
}

func (s *stream) finishLocked() {
	s.release.Do(func() {
		if s.body != nil {
			s.body.Close()
		}
		if s.free != nil {
			s.free()
		}
	})
}
