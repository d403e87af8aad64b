package notifier

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/common/config"
)

func TestNewSignalNotifier_PanicsOnNilLogger(t *testing.T) {
	assert.Panics(t, func() {
		NewSignalNotifier(context.Background(), nil, "pidfile", syscall.SIGHUP, config.RoleBoth)
	})
}

func TestNewSignalNotifier_PanicsOnEmptyPID(t *testing.T) {
	assert.Panics(t, func() {
		NewSignalNotifier(context.Background(), zap.NewNop(), "", syscall.SIGHUP, config.RoleBoth)
	})
}

func TestSignalNotifier_CanSendReceiveByRole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nRecv := NewSignalNotifier(ctx, zap.NewNop(), "pidfile", syscall.SIGUSR2, config.RoleReceiver)
	assert.True(t, nRecv.CanReceive())
	assert.False(t, nRecv.CanSend())

	nSend := NewSignalNotifier(ctx, zap.NewNop(), "pidfile", syscall.SIGUSR2, config.RoleSender)
	assert.False(t, nSend.CanReceive())
	assert.True(t, nSend.CanSend())

	ch, err := nSend.Watch(ctx)
	assert.Nil(t, ch)
	assert.ErrorIs(t, err, cnst.ErrNotReceiver)
	assert.ErrorIs(t, nRecv.NotifyReload(ctx), cnst.ErrNotSender)
}

func TestSignalNotifier_RoundTripThroughPIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "oscbridge.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewSignalNotifier(ctx, zap.NewNop(), pidPath, syscall.SIGUSR1, config.RoleBoth)
	ch, err := n.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, n.NotifyReload(ctx))
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload signal")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel did not close")
	}
}

func TestSignalNotifier_NotifyReload_BadPIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("not-a-pid"), 0o644))

	n := NewSignalNotifier(context.Background(), zap.NewNop(), pidPath, syscall.SIGHUP, config.RoleSender)
	assert.Error(t, n.NotifyReload(context.Background()))
}

func TestWatchers_CoalesceBursts(t *testing.T) {
	w := newWatchers(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := w.add(ctx)
	w.broadcast()
	w.broadcast()
	w.broadcast()

	<-ch
	select {
	case <-ch:
		t.Fatal("expected a single pending reload")
	default:
	}
}
