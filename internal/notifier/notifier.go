package notifier

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier delivers reload requests. A request carries no payload; the
// receiver reloads its configuration file.
type Notifier interface {
	// Watch returns a channel that receives a value for every reload request
	Watch(ctx context.Context) (<-chan struct{}, error)

	// NotifyReload asks the receiving side to reload
	NotifyReload(ctx context.Context) error

	// CanReceive returns true if the notifier can receive reload requests
	CanReceive() bool

	// CanSend returns true if the notifier can send reload requests
	CanSend() bool
}

// watchers fans a reload request out to every Watch channel. Channels hold at
// most one undelivered request, so bursts collapse into a single reload.
type watchers struct {
	logger *zap.Logger
	mu     sync.RWMutex
	chans  map[chan struct{}]struct{}
}

func newWatchers(logger *zap.Logger) *watchers {
	return &watchers{
		logger: logger,
		chans:  make(map[chan struct{}]struct{}),
	}
}

func (w *watchers) add(ctx context.Context) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan struct{}, 1)
	w.chans[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.chans, ch)
		close(ch)
	}()

	return ch
}

func (w *watchers) broadcast() {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for ch := range w.chans {
		select {
		case ch <- struct{}{}:
		default:
			w.logger.Debug("reload already pending for watcher")
		}
	}
}
