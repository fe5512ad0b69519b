package mistral

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/omnillm/omnillm/llm"

	"github.com/omnillm/omnillm/internal/sse"
)

// stream adapts the chat-completions SSE stream to the canonical delta-chunk
// sequence. Content deltas are forwarded as they arrive; tool calls are
// buffered and emitted as exactly one chunk carrying the complete ordered
// batch. Closing the stream fires the abort token, which tears down the
// in-flight request.
type stream struct {
	body    io.ReadCloser
	scanner *sse.Scanner
	token   *CancellationToken

	mu      sync.Mutex
	chunk   *llm.DeltaChunk
	err     error
	done    bool
	usage   llm.Usage
	exact   bool
	pending []pendingCall
	release sync.Once
	free    llm.ReleaseFunc
}

type pendingCall struct {
	id   string
	name string
	args string
}

func newStream(body io.ReadCloser, token *CancellationToken, inputTokens int64, release llm.ReleaseFunc) llm.Stream {
	return &stream{
		body:    body,
		scanner: sse.NewScanner(body),
		token:   token,
		usage:   llm.Usage{InputTokens: inputTokens},
		free:    release,
	}
}

// Next implements llm.Stream.
func (s *stream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil || s.done || s.token.Cancelled() {
		s.finishLocked()
		return false
	}

	for {
		payload, err := s.scanner.Next()
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				if calls := s.takePendingLocked(); len(calls) > 0 {
					s.chunk = llm.NewToolCallChunk(calls)
					return true
				}
			} else {
				s.err = llm.WrapProviderFailure(llm.ProviderMistral, err)
			}
			s.finishLocked()
			return false
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.done = true
			s.err = llm.NewProviderError(llm.ProviderMistral, 0, "malformed stream event: "+err.Error(), err)
			s.finishLocked()
			return false
		}

		if chunk.Usage != nil {
			s.usage.InputTokens = chunk.Usage.PromptTokens
			s.usage.OutputTokens = chunk.Usage.CompletionTokens
			s.exact = true
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if len(choice.Delta.ToolCalls) > 0 {
			s.accumulateLocked(choice.Delta.ToolCalls)
			continue
		}

		if choice.Delta.Content != "" {
			s.chunk = llm.NewContentChunk(choice.Delta.Content)
			if !s.exact {
				s.usage.OutputTokens += llm.EstimateTextTokens(choice.Delta.Content)
			}
			return true
		}

		if choice.FinishReason == "tool_calls" {
			if calls := s.takePendingLocked(); len(calls) > 0 {
				s.done = true
				s.chunk = llm.NewToolCallChunk(calls)
				return true
			}
		}
		// Keep-alive or role-only event; keep reading.
	}
}

// accumulateLocked merges tool-call entries by index. The backend usually
// sends each call whole in a single event, but fragmented arguments are
// merged the same way for safety.
func (s *stream) accumulateLocked(deltas []toolCall) {
	for _, d := range deltas {
		idx := len(s.pending)
		if d.Index != nil {
			idx = *d.Index
		}
		for len(s.pending) <= idx {
			s.pending = append(s.pending, pendingCall{})
		}
		call := &s.pending[idx]
		if d.ID != "" {
			call.id = d.ID
		}
		if d.Function.Name != "" {
			call.name = d.Function.Name
		}
		call.args += d.Function.Arguments
	}
}

func (s *stream) takePendingLocked() []llm.ToolCall {
	if len(s.pending) == 0 {
		return nil
	}
	calls := make([]llm.ToolCall, 0, len(s.pending))
	for i, p := range s.pending {
		id := p.id
		if id == "" {
			id = p.name
		}
		calls = append(calls, llm.ToolCall{
			Index: i,
			ID:    id,
			Type:  llm.ToolCallTypeFunction,
			Function: llm.FunctionCall{
				Name:      p.name,
				Arguments: llm.NormalizeArguments(p.args),
			},
		})
	}
	s.pending = nil
	return calls
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

// Close implements llm.Stream. It fires the abort token and releases the
// request context; both are safe to repeat.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.finishLocked()
	return nil
}

func (s *stream) finishLocked() {
	s.release.Do(func() {
		s.token.Cancel()
		if s.body != nil {
			s.body.Close()
		}
		if s.free != nil {
			s.free()
		}
	})
}
