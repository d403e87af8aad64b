package notifier

import (
	"context"

	"go.uber.org/zap"
)

// CompositeNotifier implements Notifier by combining multiple notifiers
type CompositeNotifier struct {
	logger    *zap.Logger
	notifiers []Notifier
	watchers  *watchers
}

// NewCompositeNotifier creates a new composite notifier
func NewCompositeNotifier(ctx context.Context, logger *zap.Logger, notifiers ...Notifier) *CompositeNotifier {
	n := &CompositeNotifier{
		logger:    logger.Named("notifier.composite"),
		notifiers: notifiers,
	}
	n.watchers = newWatchers(n.logger)

	if n.CanReceive() {
		n.watch(ctx)
	}

	return n
}

func (n *CompositeNotifier) watch(ctx context.Context) {
	for _, notifier := range n.notifiers {
		if !notifier.CanReceive() {
			continue
		}

		notifierCh, err := notifier.Watch(ctx)
		if err != nil {
			n.logger.Error("failed to watch underlying notifier", zap.Error(err))
			continue
		}

		// Forward notifications from underlying notifiers
		go func(notifierCh <-chan struct{}) {
			for {
				select {
				case _, ok := <-notifierCh:
					if !ok {
						return
					}
					n.watchers.broadcast()
				case <-ctx.Done():
					return
				}
			}
		}(notifierCh)
	}
}

// Watch implements Notifier.Watch
func (n *CompositeNotifier) Watch(ctx context.Context) (<-chan struct{}, error) {
	return n.watchers.add(ctx), nil
}

// NotifyReload sends through every notifier that can send and returns the last error
func (n *CompositeNotifier) NotifyReload(ctx context.Context) error {
	var lastErr error
	for _, notifier := range n.notifiers {
		if !notifier.CanSend() {
			continue
		}
		if err := notifier.NotifyReload(ctx); err != nil {
			lastErr = err
			n.logger.Error("failed to send reload request", zap.Error(err))
		}
	}
	return lastErr
}

// CanReceive returns true if the notifier can receive updates
func (n *CompositeNotifier) CanReceive() bool {
	for _, notifier := range n.notifiers {
		if notifier.CanReceive() {
			return true
		}
	}
	return false
}

// CanSend returns true if the notifier can send updates
func (n *CompositeNotifier) CanSend() bool {
	for _, notifier := range n.notifiers {
		if notifier.CanSend() {
			return true
		}
	}
	return false
}
