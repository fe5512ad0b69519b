package llm

// Stream is the canonical lazy sequence of delta chunks returned by every
// adapter. It is pull-based, finite, and non-restartable: callers advance
// with Next, read the current chunk with Chunk, and must Close when done
// (Close is idempotent and also runs automatically once the stream is
// exhausted). Cancellation of the request context is observable mid-sequence
// through Err.
type Stream interface {
	// Next advances to the next chunk. It returns false when the stream
	// is complete or an error occurred.
	Next() bool

	// Chunk returns the current chunk. Only valid after Next returned true.
	Chunk() *DeltaChunk

	// Err returns the error that terminated the stream, if any.
	Err() error

	// Usage returns the token counters accumulated so far. Input tokens
	// are available immediately; output tokens grow as chunks are consumed
	// and are replaced by the backend's exact counters where reported.
	Usage() *Usage

	// Close releases the stream's request context and any underlying
	// network resources. Safe to call multiple times.
	Close() error
}

// ReleaseFunc releases the per-call resources (request context entry, timer,
// open response body) owned by a stream. Implementations wrap it in a
// sync.Once so every exit path may call it unconditionally.
type ReleaseFunc func()

// Collect consumes a stream to completion, closes it, and returns every
// chunk in arrival order. Mostly useful for callers that do not need
// incremental delivery.
func Collect(s Stream) ([]*DeltaChunk, error) {
	defer s.Close()

	var chunks []*DeltaChunk
	for s.Next() {
		chunks = append(chunks, s.Chunk())
	}
	if err := s.Err(); err != nil {
		return chunks, err
	}
	return chunks, nil
}

// EstimateTextTokens approximates the token count of a text fragment. Used
// for output accounting on backends that report no usage counters; four
// characters per token is the usual rough cut for English text.
func EstimateTextTokens(text string) int64 {
	if text == "" {
		return 0
	}
	return int64(len(text)+3) / 4
}

// EstimateMessageTokens approximates the prompt token count of a message
// list before the call is issued.
func EstimateMessageTokens(messages []ChatMessage) int64 {
	var chars int
	for _, msg := range messages {
		chars += len(msg.Content) + len(msg.Name)
		for _, call := range msg.ToolCalls {
			chars += len(call.Function.Name) + len(call.Function.Arguments)
		}
	}
	return int64(chars+3) / 4
}
