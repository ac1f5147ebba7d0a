// ABOUTME: Cancellation token for the single in-flight send operation.
// ABOUTME: Wraps a context so cancellation propagates through net/http.

package conversation

import "context"

// Token is the cancellation handle for one send. At most one token is
// live per controller; starting a new send or calling Stop invalidates
// the previous one.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel invalidates the token. Idempotent.
func (t *Token) Cancel() {
	t.cancel()
}

// Cancelled reports whether the token has been invalidated, either
// directly or through its parent context.
func (t *Token) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Context exposes the token's context for request binding and reads.
func (t *Token) Context() context.Context {
	return t.ctx
}
