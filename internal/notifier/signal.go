package notifier

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/pkg/utils"
)

// SignalNotifier implements Notifier using system signals
type SignalNotifier struct {
	logger   *zap.Logger
	watchers *watchers
	pidFile  string
	sig      syscall.Signal
	role     config.NotifierRole
}

// NewSignalNotifier creates a new signal-based notifier. A receiver starts
// listening for sig immediately.
func NewSignalNotifier(ctx context.Context, logger *zap.Logger, pidFile string, sig syscall.Signal, role config.NotifierRole) *SignalNotifier {
	if logger == nil {
		panic("logger is required")
	}
	if pidFile == "" {
		panic("PID file path is required")
	}

	n := &SignalNotifier{
		logger:  logger.Named("notifier.signal"),
		pidFile: pidFile,
		sig:     sig,
		role:    role,
	}
	n.watchers = newWatchers(n.logger)

	if n.CanReceive() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, sig)
		go n.handleSignals(ctx, sigChan)
	}

	return n
}

func (n *SignalNotifier) handleSignals(ctx context.Context, sigChan chan os.Signal) {
	defer signal.Stop(sigChan)
	for {
		select {
		case sig := <-sigChan:
			n.logger.Info("Received reload signal", zap.String("signal", sig.String()))
			n.watchers.broadcast()
		case <-ctx.Done():
			return
		}
	}
}

// Watch implements Notifier.Watch
func (n *SignalNotifier) Watch(ctx context.Context) (<-chan struct{}, error) {
	if !n.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}
	return n.watchers.add(ctx), nil
}

// NotifyReload signals the process recorded in the PID file
func (n *SignalNotifier) NotifyReload(_ context.Context) error {
	if !n.CanSend() {
		return cnst.ErrNotSender
	}
	return utils.SendSignalToPIDFile(n.pidFile, n.sig)
}

// CanReceive returns true if the notifier can receive updates
func (n *SignalNotifier) CanReceive() bool {
	return n.role == config.RoleReceiver || n.role == config.RoleBoth
}

// CanSend returns true if the notifier can send updates
func (n *SignalNotifier) CanSend() bool {
	return n.role == config.RoleSender || n.role == config.RoleBoth
}
