package mistral

import (
	"context"
	"sync"
)

// CancellationToken is a cooperative abort signal for an in-flight request.
// The backend's native clients abort through a token object rather than a
// deadline, so the adapter models cancellation the same way and bridges the
// token onto the request context.
type CancellationToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancellationToken creates an unfired token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Cancel fires the token. Safe to call repeatedly and from any goroutine.
func (t *CancellationToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Done returns a channel closed when the token fires.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.done
}

// Cancelled reports whether the token has fired.
func (t *CancellationToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Bind derives a context cancelled when either the parent or the token
// fires. The returned cancel func must be called to free the watcher.
func (t *CancellationToken) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
