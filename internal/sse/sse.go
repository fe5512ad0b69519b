// Package sse reads Server-Sent Events from streaming HTTP response bodies.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize is the per-line buffer cap (1 MB). The default bufio.Scanner
// limit of 64 KiB is too small for large events such as long tool-call
// argument payloads.
const maxLineSize = 1 * 1024 * 1024

// doneSentinel terminates OpenAI-compatible SSE streams.
const doneSentinel = "[DONE]"

// Scanner reads SSE data payloads from a reader. It joins multi-line data
// fields, skips comments and empty lines, and treats the [DONE] sentinel as
// end of stream.
type Scanner struct {
	scanner *bufio.Scanner
}

// NewScanner creates a Scanner over the given reader.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{scanner: s}
}

// Next returns the next event's data payload. It returns io.EOF when the
// stream is exhausted or the [DONE] sentinel is seen.
func (s *Scanner) Next() (string, error) {
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// A blank line ends the current event.
		if line == "" {
			if len(dataLines) > 0 {
				payload := strings.Join(dataLines, "\n")
				if payload == doneSentinel {
					return "", io.EOF
				}
				return payload, nil
			}
			continue
		}

		// Comment line.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if value, ok := strings.CutPrefix(line, "data:"); ok {
			dataLines = append(dataLines, strings.TrimPrefix(value, " "))
		}
		// Other fields (event:, id:, retry:) are ignored; the backends
		// here only use data frames.
	}

	if err := s.scanner.Err(); err != nil {
		return "", err
	}

	// Flush a trailing event that was not followed by a blank line.
	if len(dataLines) > 0 {
		payload := strings.Join(dataLines, "\n")
		if payload == doneSentinel {
			return "", io.EOF
		}
		return payload, nil
	}

	return "", io.EOF
}
