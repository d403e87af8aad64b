package mailbox

import (
	"context"
	"sync"
)

// Readiness is a two-state ready signal with a generation counter. Every Fire
// starts a new generation, so a waiter that captured generation N observes any
// later Fire even if Reset ran in between.
type Readiness struct {
	mu    sync.Mutex
	gen   uint64
	ready bool
	ch    chan struct{}
}

func NewReadiness() *Readiness {
	return &Readiness{ch: make(chan struct{})}
}

// Fire marks the signal ready and wakes every waiter
func (r *Readiness) Fire() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.ready = true
	close(r.ch)
	r.ch = make(chan struct{})
	return r.gen
}

// Reset marks the signal not ready. The generation is kept.
func (r *Readiness) Reset() {
	r.mu.Lock()
	r.ready = false
	r.mu.Unlock()
}

func (r *Readiness) State() (bool, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready, r.gen
}

// Await returns immediately when ready, otherwise waits for the next Fire
func (r *Readiness) Await(ctx context.Context) (uint64, error) {
	ready, gen := r.State()
	if ready {
		return gen, nil
	}
	return r.Wait(ctx, gen)
}

// Wait blocks until a generation newer than after has fired
func (r *Readiness) Wait(ctx context.Context, after uint64) (uint64, error) {
	for {
		r.mu.Lock()
		if r.gen > after {
			gen := r.gen
			r.mu.Unlock()
			return gen, nil
		}
		ch := r.ch
		r.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
