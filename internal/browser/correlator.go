package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/neboloop/pilot/internal/logging"
)

var (
	// ErrTimeout is returned by Pending.Wait when no result arrived in time.
	ErrTimeout = errors.New("browser result timeout")
	// ErrConnClosed is returned when the connection went away while waiting.
	ErrConnClosed = errors.New("browser connection closed")
)

// Result is what the extension reported for a correlated action.
type Result struct {
	OK    bool
	HTML  string
	Error string
}

// Err returns the extension-reported failure, if any.
func (r Result) Err() error {
	if r.Error == "" {
		return nil
	}
	return errors.New(r.Error)
}

// Pending is a single-slot future for one correlation id.
type Pending struct {
	id string
	ch chan Result
	c  *Correlator
}

// ID returns the correlation id.
func (p *Pending) ID() string { return p.id }

// Wait blocks until the result arrives, the timeout fires, the context is
// cancelled, or the connection closes. The slot is released in every case.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) (Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res, ok := <-p.ch:
		if !ok {
			return Result{}, ErrConnClosed
		}
		return res, nil
	case <-timer.C:
		p.c.drop(p)
		return Result{}, ErrTimeout
	case <-ctx.Done():
		p.c.drop(p)
		return Result{}, ctx.Err()
	}
}

// Cancel releases the slot without waiting (e.g. the send failed).
func (p *Pending) Cancel() {
	p.c.drop(p)
}

// Correlator maps outstanding action ids to their pending results.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*Pending
	closed  bool
}

// NewCorrelator creates an empty correlation table.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]*Pending)}
}

// Expect registers id before the action is sent so a fast reply can't be missed.
// Registering an id that is already outstanding replaces the older slot,
// which then reports ErrConnClosed.
func (c *Correlator) Expect(id string) *Pending {
	p := &Pending{id: id, ch: make(chan Result, 1), c: c}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(p.ch)
		return p
	}
	if old, ok := c.pending[id]; ok {
		close(old.ch)
	}
	c.pending[id] = p
	return p
}

// Resolve fulfils the slot for id. Unknown or already-resolved ids are
// dropped and false is returned.
func (c *Correlator) Resolve(id string, res Result) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		logging.Debugf("[Relay] dropping result for unknown id %q", id)
		return false
	}
	p.ch <- res
	return true
}

// Len returns the number of outstanding slots.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close releases every outstanding slot. Later Expect calls return slots
// that are already released.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, p := range c.pending {
		close(p.ch)
		delete(c.pending, id)
	}
}

func (c *Correlator) drop(p *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.pending[p.id]; ok && cur == p {
		delete(c.pending, p.id)
	}
}
