package router

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/catalog"
	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/listener"
	"github.com/amoylab/oscbridge/internal/mailbox"
	"github.com/amoylab/oscbridge/pkg/metrics"
	"github.com/amoylab/oscbridge/pkg/utils"
)

// Requester sends a mailbox request
type Requester interface {
	SendRequest(ctx context.Context, mailbox, msgType string, data map[string]any, expectResponse bool) (mailbox.Message, error)
}

// Outcome reports what happened to one event
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeNotTrigger     Outcome = "not_trigger"
	OutcomeUnmapped       Outcome = "unmapped"
	OutcomeUnknownCommand Outcome = "unknown_command"
	OutcomeFailed         Outcome = "failed"
)

// Mapping holds the address -> command name table. Readers get an immutable
// snapshot; Store swaps the whole table.
type Mapping struct {
	table atomic.Pointer[map[string]string]
}

func NewMapping(m map[string]string) *Mapping {
	mp := &Mapping{}
	mp.Store(m)
	return mp
}

func (m *Mapping) Store(table map[string]string) {
	cp := utils.CloneStringMap(table)
	m.table.Store(&cp)
}

func (m *Mapping) Snapshot() map[string]string {
	if p := m.table.Load(); p != nil {
		return *p
	}
	return nil
}

func (m *Mapping) Len() int {
	return len(m.Snapshot())
}

// Router turns boolean parameter triggers into mailbox requests
type Router struct {
	requester Requester
	mapping   *Mapping
	catalog   atomic.Pointer[catalog.Catalog]
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func New(requester Requester, mapping *Mapping, logger *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{
		requester: requester,
		mapping:   mapping,
		logger:    logger.Named("router"),
		metrics:   m,
	}
}

// SetCatalog replaces the catalog used for resolution
func (r *Router) SetCatalog(c *catalog.Catalog) {
	r.catalog.Store(c)
}

func (r *Router) Catalog() *catalog.Catalog {
	return r.catalog.Load()
}

// Run handles events one at a time until the channel closes or ctx is done
func (r *Router) Run(ctx context.Context, events <-chan listener.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := r.Handle(ctx, ev); err != nil {
				r.logger.Error("failed to handle OSC event",
					zap.String("address", ev.Address),
					zap.Error(err))
			}
		}
	}
}

// Handle processes one event. Errors and panics are contained to the event.
func (r *Router) Handle(ctx context.Context, ev listener.Event) (outcome Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("%w: panic: %v", cnst.ErrRouterHandler, p)
		}
		r.metrics.Trigger(string(outcome))
	}()

	if !isTrigger(ev.Args) {
		return OutcomeNotTrigger, nil
	}

	name, ok := r.mapping.Snapshot()[ev.Address]
	if !ok {
		return OutcomeUnmapped, nil
	}

	cmd, ok := Resolve(name, r.catalog.Load())
	if !ok {
		r.logger.Debug("command not available",
			zap.String("address", ev.Address),
			zap.String("command", name))
		return OutcomeUnknownCommand, nil
	}

	switch c := cmd.(type) {
	case SpecialCommand:
		_, err = r.requester.SendRequest(ctx, c.Request.Mailbox, c.Request.Type, c.Request.Data, false)
	case CatalogCommand:
		_, err = r.requester.SendRequest(ctx, c.Mailbox, c.Name, nil, false)
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: command %s: %w", cnst.ErrRouterHandler, name, err)
	}

	r.logger.Info("sent command",
		zap.String("address", ev.Address),
		zap.String("command", name))
	return OutcomeSent, nil
}

// isTrigger reports whether args is exactly a single boolean true
func isTrigger(args []any) bool {
	if len(args) != 1 {
		return false
	}
	b, ok := args[0].(bool)
	return ok && b
}
