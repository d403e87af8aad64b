package mailbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/pkg/metrics"
)

type result struct {
	msg Message
	err error
}

// Client keeps one mailbox session alive over a websocket. Each successful
// connect starts a new epoch with its own channel name; every request still
// pending when an epoch ends is cancelled.
type Client struct {
	cfg     config.SessionConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	seq     *Sequence
	ready   *Readiness
	rng     *rand.Rand

	mu             sync.Mutex
	conn           *websocket.Conn
	channel        string
	connectedSince time.Time
	epoch          uint64
	pending        map[int64]chan result
	started        bool
	stopped        bool

	writeMu sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
}

// NewClient creates a client. seq may be shared between successive clients.
func NewClient(cfg config.SessionConfig, seq *Sequence, logger *zap.Logger, m *metrics.Metrics) *Client {
	if seq == nil {
		seq = NewSequence()
	}
	if cfg.URL == "" {
		cfg.URL = cnst.DefaultMailboxURL
	}
	if cfg.Origin == "" {
		cfg.Origin = cnst.DefaultMailboxOrigin
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.Named("mailbox"),
		metrics: m,
		seq:     seq,
		ready:   NewReadiness(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		pending: make(map[int64]chan result),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SendRequest sends `mailbox_send <mailbox> <json>` on the current epoch. With
// expectResponse it waits for the response carrying the allocated message_id,
// or for the request to be cancelled by the end of the epoch. ctx only bounds
// the caller's wait.
func (c *Client) SendRequest(ctx context.Context, mailbox, msgType string, data map[string]any, expectResponse bool) (Message, error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return Message{}, cnst.ErrClientStopped
	}
	if c.conn == nil || c.connectedSince.IsZero() {
		c.mu.Unlock()
		return Message{}, cnst.ErrNotConnected
	}
	conn := c.conn
	channel := c.channel

	var (
		id   int64
		slot chan result
	)
	if expectResponse {
		id = c.seq.NextID()
		slot = make(chan result, 1)
		c.pending[id] = slot
		c.metrics.SetPending(len(c.pending))
	}
	c.mu.Unlock()

	frame, err := encodeSend(mailbox, msgType, data, id, channel, expectResponse)
	if err != nil {
		c.removePending(id, slot)
		return Message{}, err
	}

	if err := c.write(conn, frame); err != nil {
		c.removePending(id, slot)
		_ = conn.Close()
		return Message{}, fmt.Errorf("%w: %w", cnst.ErrTransportFailure, err)
	}
	c.metrics.RequestSent(mailbox, expectResponse)
	c.logger.Debug("sent mailbox request",
		zap.String("mailbox", mailbox),
		zap.String("type", msgType),
		zap.Int64("message_id", id))

	if !expectResponse {
		return Message{}, nil
	}

	select {
	case r := <-slot:
		return r.msg, r.err
	case <-ctx.Done():
		c.removePending(id, slot)
		return Message{}, ctx.Err()
	}
}

// AwaitReady blocks until the channel of the current or next epoch is open
// and returns that epoch.
func (c *Client) AwaitReady(ctx context.Context) (uint64, error) {
	return c.waitReady(ctx, c.ready.Await)
}

// WaitReady blocks until an epoch newer than after is open
func (c *Client) WaitReady(ctx context.Context, after uint64) (uint64, error) {
	return c.waitReady(ctx, func(ctx context.Context) (uint64, error) {
		return c.ready.Wait(ctx, after)
	})
}

func (c *Client) waitReady(ctx context.Context, wait func(context.Context) (uint64, error)) (uint64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	epoch, err := wait(ctx)
	if err != nil && c.isStopped() {
		return 0, cnst.ErrClientStopped
	}
	return epoch, err
}

// RunForever runs the epoch loop: connect, open a channel, receive until the
// transport fails, then reconnect. It returns nil after Stop and ctx.Err()
// when ctx is cancelled.
func (c *Client) RunForever(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return cnst.ErrClientStopped
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("mailbox client already running")
	}
	c.started = true
	c.mu.Unlock()
	defer close(c.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	attempt := 0
	for {
		if runCtx.Err() != nil {
			return c.exitErr(ctx)
		}

		conn, err := c.dial(runCtx)
		if err != nil {
			if runCtx.Err() != nil {
				return c.exitErr(ctx)
			}
			attempt++
			delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
			c.logger.Warn("failed to connect to mailbox endpoint",
				zap.String("url", c.cfg.URL),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			if err := sleepBackoff(runCtx, delay); err != nil {
				return c.exitErr(ctx)
			}
			continue
		}
		attempt = 0

		if err := c.open(conn); err != nil {
			_ = conn.Close()
			c.endEpoch(err)
		} else {
			c.endEpoch(c.receive(runCtx, conn))
		}

		if runCtx.Err() != nil {
			return c.exitErr(ctx)
		}
		if err := sleepBackoff(runCtx, NextBackoffDelay(c.cfg.Backoff, 1, c.rng)); err != nil {
			return c.exitErr(ctx)
		}
	}
}

// Stop ends the session and waits for RunForever to return. It is idempotent.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	already := c.stopped
	c.stopped = true
	conn := c.conn
	started := c.started
	c.mu.Unlock()

	if !already {
		close(c.stopCh)
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		}
	}
	if !started {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once RunForever has returned
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.connectedSince.IsZero()
}

// ConnectedSince returns the zero time while disconnected
func (c *Client) ConnectedSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedSince
}

func (c *Client) ChannelName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Client) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		EnableCompression: false,
	}
	header := http.Header{}
	header.Set("Origin", c.cfg.Origin)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// open starts a new epoch on conn by sending mailbox_open with a fresh channel
func (c *Client) open(conn *websocket.Conn) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return cnst.ErrClientStopped
	}
	channel := c.seq.NextChannel(time.Now())
	c.conn = conn
	c.mu.Unlock()

	if err := c.write(conn, encodeOpen(channel)); err != nil {
		return fmt.Errorf("%w: %w", cnst.ErrTransportFailure, err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return cnst.ErrClientStopped
	}
	c.channel = channel
	c.connectedSince = time.Now()
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.ready.Fire()
	c.metrics.EpochStarted()
	c.logger.Info("mailbox channel opened",
		zap.String("channel", channel),
		zap.Uint64("epoch", epoch))
	return nil
}

func (c *Client) receive(ctx context.Context, conn *websocket.Conn) error {
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-finished:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %w", cnst.ErrTransportFailure, err)
		}
		c.dispatch(data)
	}
}

// dispatch fulfils the pending request matching the frame's message_id.
// Frames without a pending id are ignored.
func (c *Client) dispatch(data []byte) {
	if !gjson.ValidBytes(data) {
		c.malformed(data)
		return
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		c.malformed(data)
		return
	}

	idField := parsed.Get(cnst.FieldMessageID)
	if idField.Type != gjson.Number {
		return
	}
	id := idField.Int()

	c.mu.Lock()
	slot, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		c.metrics.SetPending(len(c.pending))
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("ignoring response for unknown request", zap.Int64("message_id", id))
		return
	}
	slot <- result{msg: Message{ID: id, Raw: data}}
	c.metrics.ResponseMatched()
}

func (c *Client) malformed(data []byte) {
	const maxLogged = 256
	if len(data) > maxLogged {
		data = data[:maxLogged]
	}
	c.metrics.MalformedMessage()
	c.logger.Warn("dropping inbound frame",
		zap.ByteString("frame", data),
		zap.Error(cnst.ErrMalformedMessage))
}

// endEpoch clears the connection state and cancels every pending request
func (c *Client) endEpoch(cause error) {
	c.mu.Lock()
	wasConnected := !c.connectedSince.IsZero()
	c.connectedSince = time.Time{}
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.pending = make(map[int64]chan result)
	stopped := c.stopped
	channel := c.channel
	c.mu.Unlock()

	c.ready.Reset()
	if conn != nil {
		_ = conn.Close()
	}

	cancelErr := cnst.ErrReconnected
	if stopped {
		cancelErr = cnst.ErrClientStopped
	}
	for _, slot := range pending {
		slot <- result{err: cancelErr}
	}
	c.metrics.RequestsCancelled(len(pending))
	c.metrics.SetPending(0)

	if !wasConnected {
		return
	}
	c.metrics.EpochEnded()
	if stopped {
		c.logger.Info("mailbox session closed", zap.String("channel", channel))
		return
	}
	c.logger.Warn("mailbox session lost",
		zap.String("channel", channel),
		zap.Int("cancelled", len(pending)),
		zap.Error(cause))
}

func (c *Client) write(conn *websocket.Conn, frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *Client) removePending(id int64, slot chan result) {
	if slot == nil {
		return
	}
	c.mu.Lock()
	if cur, ok := c.pending[id]; ok && cur == slot {
		delete(c.pending, id)
		c.metrics.SetPending(len(c.pending))
	}
	c.mu.Unlock()
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Client) exitErr(ctx context.Context) error {
	if c.isStopped() {
		return nil
	}
	return ctx.Err()
}

func sleepBackoff(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
