package openai

import (
	"errors"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/omnillm/omnillm/llm"
)

// stream adapts an OpenAI completion stream to the canonical delta-chunk
// sequence. Content deltas are forwarded as they arrive; tool-call fragments
// are the only thing buffered, and are emitted as exactly one chunk carrying
// the complete ordered call list once the backend finishes them.
type stream struct {
	provider string
	native   *openai.ChatCompletionStream

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

// pendingCall accumulates the streamed fragments of one tool call.
type pendingCall struct {
	id   string
	name string
	args string
}

// NewStream wraps a native OpenAI-format completion stream. Shared with the
// OpenRouter adapter. inputTokens seeds the usage counters until the backend
// reports exact numbers.
func NewStream(provider string, native *openai.ChatCompletionStream, inputTokens int64, release llm.ReleaseFunc) llm.Stream {
	return &stream{
		provider: provider,
		native:   native,
		usage:    llm.Usage{InputTokens: inputTokens},
		free:     release,
	}
}

func newStream(provider string, native *openai.ChatCompletionStream, inputTokens int64, release llm.ReleaseFunc) llm.Stream {
	return NewStream(provider, native, inputTokens, release)
}

// Next implements llm.Stream.
func (s *stream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil || s.done {
		s.releaseLocked()
		return false
	}

	for {
		resp, err := s.native.Recv()
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				// Tool calls arrive fragmented; the complete batch is
				// only known once the backend closes the stream.
				if calls := s.takePendingLocked(); len(calls) > 0 {
					s.chunk = llm.NewToolCallChunk(calls)
					return true
				}
			} else {
				s.err = ConvertAPIError(s.provider, err)
			}
			s.releaseLocked()
			return false
		}

		if resp.Usage != nil {
			s.usage.InputTokens = int64(resp.Usage.PromptTokens)
			s.usage.OutputTokens = int64(resp.Usage.CompletionTokens)
			s.exact = true
		}

		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

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

		if choice.FinishReason == openai.FinishReasonToolCalls {
			if calls := s.takePendingLocked(); len(calls) > 0 {
				s.done = true
				s.chunk = llm.NewToolCallChunk(calls)
				return true
			}
		}
		// Keep-alive or role-only chunk; keep reading.
	}
}

// accumulateLocked merges streamed tool-call fragments by index.
func (s *stream) accumulateLocked(deltas []openai.ToolCall) {
	for _, delta := range deltas {
		idx := len(s.pending)
		if delta.Index != nil {
			idx = *delta.Index
		}
		for len(s.pending) <= idx {
			s.pending = append(s.pending, pendingCall{})
		}
		call := &s.pending[idx]
		if delta.ID != "" {
			call.id = delta.ID
		}
		if delta.Function.Name != "" {
			call.name = delta.Function.Name
		}
		call.args += delta.Function.Arguments
	}
}

// takePendingLocked finalizes the accumulated fragments into the complete,
// ordered tool-call batch.
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

// Close implements llm.Stream. It closes the underlying network stream and
// releases the request context; both are safe to repeat.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.releaseLocked()
	if s.native != nil {
		return s.native.Close()
	}
	return nil
}

func (s *stream) releaseLocked() {
	s.release.Do(func() {
		if s.free != nil {
			s.free()
		}
	})
}
