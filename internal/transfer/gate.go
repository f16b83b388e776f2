package transfer

import (
	"context"
	"sync"
)

// Gate is the pause point the worker passes through between buffer
// writes and between files. Pausing closes the gate; the worker then
// blocks in Wait until the gate reopens or the job is cancelled.
// Control-side calls never block: Pause and Resume only swap a channel.
// v1.1.0: Added pause support.
type Gate struct {
	mu     sync.Mutex
	closed chan struct{} // non-nil while paused; closed on resume
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// Pause closes the gate. Idempotent.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed == nil {
		g.closed = make(chan struct{})
	}
}

// Resume reopens the gate, releasing any waiting worker. Idempotent.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed != nil {
		close(g.closed)
		g.closed = nil
	}
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed != nil
}

// Wait blocks while the gate is paused. It returns ctx.Err() if the job
// is cancelled while waiting, nil otherwise. The open-gate fast path is
// one mutex acquisition.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		ch := g.closed
		g.mu.Unlock()

		if ch == nil {
			return nil
		}
		select {
		case <-ch:
			// Resumed; re-check in case of an immediate re-pause
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
