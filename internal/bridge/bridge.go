package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/catalog"
	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/internal/listener"
	"github.com/amoylab/oscbridge/internal/mailbox"
	"github.com/amoylab/oscbridge/internal/router"
	"github.com/amoylab/oscbridge/pkg/metrics"
)

const stopTimeout = 5 * time.Second

type cycleEnd int

const (
	endStop cycleEnd = iota
	endContext
	endReload
	endRetry
)

// Status is a point-in-time view of the bridge
type Status struct {
	Connected      bool       `json:"connected"`
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
	Channel        string     `json:"channel"`
	Epoch          uint64     `json:"epoch"`
	Pending        int        `json:"pending"`
	CatalogSize    int        `json:"catalog_size"`
	Commands       []string   `json:"commands,omitempty"`
	MappingSize    int        `json:"mapping_size"`
	Listening      string     `json:"listening,omitempty"`
	Cycles         uint64     `json:"cycles"`
}

// Bridge wires the mailbox session, the command catalog, the router and the
// OSC listener together and restarts them on reconnect and reload.
type Bridge struct {
	store   *config.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	mapping *router.Mapping
	seq     *mailbox.Sequence

	reloadCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	cfg      *config.BridgeConfig
	client   *mailbox.Client
	router   *router.Router
	listener *listener.Listener
	cycles   uint64
}

// New creates a bridge from the current contents of store
func New(store *config.Store, logger *zap.Logger, m *metrics.Metrics) (*Bridge, error) {
	cfg, err := store.Config()
	if err != nil {
		return nil, err
	}
	if err := config.ValidateBridgeConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Bridge{
		store:    store,
		logger:   logger.Named("bridge"),
		metrics:  m,
		mapping:  router.NewMapping(cfg.CommandMapping),
		seq:      mailbox.NewSequence(),
		reloadCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		cfg:      cfg,
	}, nil
}

// Run executes bridge cycles until Stop, ctx cancellation, or a fatal error
func (b *Bridge) Run(ctx context.Context) error {
	attempt := 0
	for {
		end, err := b.runCycle(ctx)
		switch end {
		case endStop:
			return nil
		case endContext:
			return ctx.Err()
		case endReload:
			attempt = 0
			if err := b.reload(); err != nil {
				b.logger.Error("failed to reload config, keeping previous", zap.Error(err))
			}
			continue
		}

		var fatal *fatalError
		if errors.As(err, &fatal) {
			return fatal.err
		}

		attempt++
		delay := mailbox.NextBackoffDelay(b.config().Session.Backoff, attempt, nil)
		b.logger.Info("restarting bridge cycle", zap.Duration("retry_in", delay), zap.Error(err))
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-b.stopCh:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reload requests a config reload. The current cycle ends and a new one
// starts with the reloaded configuration.
func (b *Bridge) Reload() {
	select {
	case b.reloadCh <- struct{}{}:
	default:
	}
}

// Stop ends Run. Safe to call from any goroutine, more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Status reports the state of the current cycle
func (b *Bridge) Status() Status {
	b.mu.RLock()
	client, rt, ln, cycles := b.client, b.router, b.listener, b.cycles
	b.mu.RUnlock()

	st := Status{
		MappingSize: b.mapping.Len(),
		Cycles:      cycles,
	}
	if client != nil {
		st.Connected = client.IsConnected()
		if since := client.ConnectedSince(); !since.IsZero() {
			st.ConnectedSince = &since
		}
		st.Channel = client.ChannelName()
		st.Epoch = client.Epoch()
		st.Pending = client.PendingCount()
	}
	if rt != nil {
		cat := rt.Catalog()
		st.CatalogSize = cat.Len()
		st.Commands = cat.Names()
	}
	if ln != nil {
		st.Listening = ln.Addr().String()
	}
	return st
}

// Mapping returns the live address mapping
func (b *Bridge) Mapping() *router.Mapping {
	return b.mapping
}

func (b *Bridge) config() *config.BridgeConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

var errCycleRetry = errors.New("bridge cycle ended")

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// runCycle runs one connect -> discover -> listen cycle
func (b *Bridge) runCycle(ctx context.Context) (cycleEnd, error) {
	cfg := b.config()

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// stop and reload end the cycle by cancelling cycleCtx
	requested := make(chan cycleEnd, 1)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-b.stopCh:
			requested <- endStop
			cancel()
		case <-b.reloadCh:
			requested <- endReload
			cancel()
		case <-cycleCtx.Done():
		}
	}()
	finish := func(fallback cycleEnd, err error) (cycleEnd, error) {
		cancel()
		<-watchDone
		select {
		case end := <-requested:
			return end, nil
		default:
		}
		if ctx.Err() != nil {
			return endContext, nil
		}
		return fallback, err
	}

	client := mailbox.NewClient(cfg.Session, b.seq, b.logger, b.metrics)
	rt := router.New(client, b.mapping, b.logger, b.metrics)
	b.mu.Lock()
	b.client = client
	b.router = rt
	b.cycles++
	b.mu.Unlock()

	loopDone := make(chan error, 1)
	go func() { loopDone <- client.RunForever(cycleCtx) }()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		if err := client.Stop(stopCtx); err != nil {
			b.logger.Warn("mailbox client did not stop in time", zap.Error(err))
		}
	}()

	epoch, err := client.AwaitReady(cycleCtx)
	if err != nil {
		return finish(endRetry, errCycleRetry)
	}
	b.logger.Info("connected to mailbox endpoint", zap.String("channel", client.ChannelName()))

	if err := b.populate(cycleCtx, client, rt); err != nil {
		if cycleCtx.Err() == nil {
			b.logger.Error("failed to populate command catalog", zap.Error(err))
		}
		return finish(endRetry, err)
	}

	ln, err := listener.Listen(cfg.OSC, b.logger, b.metrics)
	if err != nil {
		b.logger.Error("failed to start OSC listener", zap.Error(err))
		return finish(endRetry, &fatalError{err: err})
	}
	b.mu.Lock()
	b.listener = ln
	b.mu.Unlock()

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		rt.Run(cycleCtx, ln.Events())
	}()
	defer func() {
		_ = ln.Close()
		<-routerDone
		b.mu.Lock()
		b.listener = nil
		b.mu.Unlock()
	}()

	for {
		next := make(chan uint64, 1)
		go func(after uint64) {
			if e, err := client.WaitReady(cycleCtx, after); err == nil {
				next <- e
			}
		}(epoch)

		select {
		case <-cycleCtx.Done():
			return finish(endRetry, errCycleRetry)
		case err := <-loopDone:
			return finish(endRetry, fmt.Errorf("mailbox session ended: %w", err))
		case epoch = <-next:
			if err := b.populate(cycleCtx, client, rt); err != nil {
				if cycleCtx.Err() == nil {
					b.logger.Error("failed to repopulate command catalog", zap.Error(err))
				}
				return finish(endRetry, err)
			}
		}
	}
}

func (b *Bridge) populate(ctx context.Context, client *mailbox.Client, rt *router.Router) error {
	cat, err := catalog.Load(ctx, client)
	if err != nil {
		b.metrics.CatalogLoaded(0, err)
		return err
	}
	b.metrics.CatalogLoaded(cat.Len(), nil)
	rt.SetCatalog(cat)
	b.logger.Info("loaded command catalog",
		zap.Int("commands", len(cat.Commands())),
		zap.Int("unique", cat.Len()),
		zap.Uint64("epoch", client.Epoch()))
	return nil
}

// reload re-reads the store and swaps the mapping. An invalid file keeps
// the previous configuration.
func (b *Bridge) reload() error {
	if err := b.store.Reload(); err != nil {
		return err
	}
	cfg, err := b.store.Config()
	if err != nil {
		return err
	}
	if err := config.ValidateBridgeConfig(cfg); err != nil {
		return err
	}

	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
	b.mapping.Store(cfg.CommandMapping)

	b.logger.Info("reloaded config", zap.Int("mapping", len(cfg.CommandMapping)))
	return nil
}
