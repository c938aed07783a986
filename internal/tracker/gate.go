package tracker

import (
	"context"
	"sync"
)

// Gate is a one-shot broadcast latch. Once fired it stays fired, and every
// current and future waiter is released.
type Gate struct {
	once sync.Once
	ch   chan struct{}
}

// NewGate creates a pending gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Fire releases all waiters. Calling it more than once is a no-op.
func (g *Gate) Fire() {
	g.once.Do(func() { close(g.ch) })
}

// Wait blocks until the gate fires or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fired reports whether the gate has fired.
func (g *Gate) Fired() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the gate fires.
func (g *Gate) Done() <-chan struct{} {
	return g.ch
}
