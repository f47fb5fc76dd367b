// Package stream feeds frames from a directory into the detector and
// publishes the results as JSON lines. Only the most recent frame is kept;
// frames that arrive while one is being processed replace each other.
package stream

import (
	"sync"

	"go.uber.org/atomic"
)

// Latest is a single-slot mailbox. Put overwrites any pending value.
type Latest struct {
	mu      sync.Mutex
	pending string
	has     bool
	ready   chan struct{}
	dropped atomic.Uint64
}

// NewLatest creates an empty mailbox.
func NewLatest() *Latest {
	return &Latest{ready: make(chan struct{}, 1)}
}

// Put stores v, dropping the previous pending value if there is one.
func (l *Latest) Put(v string) {
	l.mu.Lock()
	if l.has {
		l.dropped.Inc()
	}
	l.pending = v
	l.has = true
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Ready is signaled after Put.
func (l *Latest) Ready() <-chan struct{} {
	return l.ready
}

// Take removes and returns the pending value.
func (l *Latest) Take() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.has {
		return "", false
	}
	v := l.pending
	l.pending = ""
	l.has = false
	return v, true
}

// Dropped returns how many values were overwritten before being taken.
func (l *Latest) Dropped() uint64 {
	return l.dropped.Load()
}

// Gate is the node's enable switch. The zero value is disabled.
type Gate struct {
	enabled atomic.Bool
}

// Enable turns processing on.
func (g *Gate) Enable() { g.enabled.Store(true) }

// Disable turns processing off.
func (g *Gate) Disable() { g.enabled.Store(false) }

// Enabled reports whether frames should be processed.
func (g *Gate) Enabled() bool { return g.enabled.Load() }
