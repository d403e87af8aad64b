package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/internal/mailbox/mailboxtest"
)

func testSessionConfig(url string) config.SessionConfig {
	return config.SessionConfig{
		URL:              url,
		HandshakeTimeout: time.Second,
		WriteTimeout:     time.Second,
		Backoff: config.BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   2,
			MaxDelay:     50 * time.Millisecond,
		},
	}
}

type runningClient struct {
	*Client
	errCh  chan error
	cancel context.CancelFunc
}

func startClient(t *testing.T, f *mailboxtest.Runtime, seq *Sequence) *runningClient {
	t.Helper()
	c := NewClient(testSessionConfig(f.URL()), seq, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	rc := &runningClient{Client: c, errCh: make(chan error, 1), cancel: cancel}
	go func() { rc.errCh <- c.RunForever(ctx) }()
	t.Cleanup(func() {
		_ = c.Stop(context.Background())
		cancel()
	})
	return rc
}

func awaitReady(t *testing.T, c *Client) uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	epoch, err := c.AwaitReady(ctx)
	require.NoError(t, err)
	return epoch
}
