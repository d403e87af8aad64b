package listener

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/pkg/metrics"
)

const maxPacketSize = 65535

// Event is one OSC message as delivered to the router
type Event struct {
	Address string
	Args    []any
}

// Listener receives OSC packets on a UDP socket and queues every message,
// including those nested in bundles, in arrival order.
type Listener struct {
	conn       net.PacketConn
	events     chan Event
	dispatcher osc.Dispatcher
	logger     *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// Listen binds the configured address and starts serving
func Listen(cfg config.OSCConfig, logger *zap.Logger, m *metrics.Metrics) (*Listener, error) {
	addr := net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.ListenPort))
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OSC on %s: %w", addr, err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	logger = logger.Named("osc")
	events := make(chan Event, size)
	l := &Listener{
		conn:       conn,
		events:     events,
		dispatcher: &queueDispatcher{events: events, logger: logger, metrics: m},
		logger:     logger,
		done:       make(chan struct{}),
	}
	go l.serve()

	logger.Info("OSC server listening", zap.String("addr", conn.LocalAddr().String()))
	return l, nil
}

// Events is closed after Close once serving has ended
func (l *Listener) Events() <-chan Event {
	return l.events
}

func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close stops serving and waits for the event channel to be closed
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.conn.Close()
	})
	<-l.done
	return err
}

// serve reads and dispatches packets on one goroutine; osc.Server would
// dispatch each packet on its own goroutine and lose ordering.
func (l *Listener) serve() {
	defer close(l.done)
	defer close(l.events)

	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("failed to read OSC packet", zap.Error(err))
			continue
		}

		packet, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			l.logger.Debug("dropping invalid OSC packet",
				zap.Stringer("from", from),
				zap.Error(err))
			continue
		}
		l.dispatcher.Dispatch(packet)
	}
}

// queueDispatcher routes every message to the bounded event queue
type queueDispatcher struct {
	events  chan<- Event
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (d *queueDispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		d.enqueue(p)
	case *osc.Bundle:
		for _, msg := range p.Messages {
			d.enqueue(msg)
		}
		for _, b := range p.Bundles {
			d.Dispatch(b)
		}
	}
}

func (d *queueDispatcher) enqueue(msg *osc.Message) {
	ev := Event{Address: msg.Address, Args: append([]any(nil), msg.Arguments...)}
	select {
	case d.events <- ev:
	default:
		d.metrics.EventDropped()
		d.logger.Warn("OSC event queue full, dropping event", zap.String("address", msg.Address))
	}
}
