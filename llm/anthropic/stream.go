package anthropic

import (
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/omnillm/omnillm/llm"
)

// stream adapts the typed block-event stream to the canonical delta-chunk
// sequence. Text deltas are forwarded as they arrive; tool_use blocks are
// assembled from partial-JSON deltas and emitted together as one chunk when
// the message stops.
type stream struct {
	native *ssestream.Stream[anthropic.MessageStreamEventUnion]

	mu      sync.Mutex
	chunk   *llm.DeltaChunk
	err     error
	done    bool
	usage   llm.Usage
	exact   bool
	pending []pendingCall
	open    *pendingCall
	release sync.Once
	free    llm.ReleaseFunc
}

// pendingCall assembles one tool_use block.
type pendingCall struct {
	id   string
	name string
	args string
}

func newStream(native *ssestream.Stream[anthropic.MessageStreamEventUnion], inputTokens int64, release llm.ReleaseFunc) llm.Stream {
	return &stream{
		native: native,
		usage:  llm.Usage{InputTokens: inputTokens},
		free:   release,
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

	for s.native.Next() {
		switch evt := s.native.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			if evt.Message.Usage.InputTokens > 0 {
				s.usage.InputTokens = evt.Message.Usage.InputTokens
				s.exact = true
			}

		case anthropic.ContentBlockStartEvent:
			if block, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				s.open = &pendingCall{id: block.ID, name: block.Name}
			}

		case anthropic.ContentBlockDeltaEvent:
			switch d := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if d.Text != "" {
					s.chunk = llm.NewContentChunk(d.Text)
					if !s.exact {
						s.usage.OutputTokens += llm.EstimateTextTokens(d.Text)
					}
					return true
				}
			case anthropic.InputJSONDelta:
				if s.open != nil {
					s.open.args += d.PartialJSON
				}
			}

		case anthropic.ContentBlockStopEvent:
			if s.open != nil {
				s.pending = append(s.pending, *s.open)
				s.open = nil
			}

		case anthropic.MessageDeltaEvent:
			if evt.Usage.OutputTokens > 0 {
				s.usage.OutputTokens = evt.Usage.OutputTokens
				s.exact = true
			}

		case anthropic.MessageStopEvent:
			s.done = true
			if calls := s.takePendingLocked(); len(calls) > 0 {
				s.chunk = llm.NewToolCallChunk(calls)
				return true
			}
			s.finishLocked()
			return false
		}
	}

	s.done = true
	if err := s.native.Err(); err != nil {
		s.err = convertAPIError(err)
	} else if calls := s.takePendingLocked(); len(calls) > 0 {
		s.chunk = llm.NewToolCallChunk(calls)
		return true
	}
	s.finishLocked()
	return false
}

// takePendingLocked finalizes the assembled blocks into the complete,
// ordered tool-call batch. The backend always assigns block ids; the
// function-name fallback matches the other adapters for uniformity.
func (s *stream) takePendingLocked() []llm.ToolCall {
	if s.open != nil {
		s.pending = append(s.pending, *s.open)
		s.open = nil
	}
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
		if s.native != nil {
			s.native.Close()
		}
		if s.free != nil {
			s.free()
		}
	})
}
