package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/catalog"
	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/listener"
	"github.com/amoylab/oscbridge/internal/mailbox"
)

type sent struct {
	Mailbox        string
	Type           string
	Data           map[string]any
	ExpectResponse bool
}

type recorder struct {
	mu    sync.Mutex
	calls []sent
	err   error
	panic bool
}

func (r *recorder) SendRequest(_ context.Context, mb, msgType string, data map[string]any, expectResponse bool) (mailbox.Message, error) {
	if r.panic {
		panic("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sent{mb, msgType, data, expectResponse})
	return mailbox.Message{}, r.err
}

func (r *recorder) Calls() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.calls...)
}

func newRouter(req Requester, mapping map[string]string) *Router {
	r := New(req, NewMapping(mapping), zap.NewNop(), nil)
	r.SetCatalog(catalog.New([]catalog.Command{
		{Command: "mute", Mailbox: cnst.MailboxCompositor},
		{Command: "screenshot", Mailbox: cnst.MailboxCompositor},
	}))
	return r
}

func TestHandle_RejectsNonTriggers(t *testing.T) {
	req := &recorder{}
	r := newRouter(req, map[string]string{"/avatar/parameters/Mute": "mute"})

	for _, args := range [][]any{
		nil,
		{false},
		{int32(1)},
		{"true"},
		{true, true},
		{float32(1)},
	} {
		outcome, err := r.Handle(context.Background(), listener.Event{Address: "/avatar/parameters/Mute", Args: args})
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotTrigger, outcome, "args %v", args)
	}
	assert.Empty(t, req.Calls())
}

func TestHandle_Unmapped(t *testing.T) {
	req := &recorder{}
	r := newRouter(req, map[string]string{"/avatar/parameters/Mute": "mute"})

	outcome, err := r.Handle(context.Background(), listener.Event{Address: "/avatar/parameters/Other", Args: []any{true}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmapped, outcome)
	assert.Empty(t, req.Calls())
}

func TestHandle_UnknownCommand(t *testing.T) {
	req := &recorder{}
	r := newRouter(req, map[string]string{"/avatar/parameters/X": "does_not_exist"})

	outcome, err := r.Handle(context.Background(), listener.Event{Address: "/avatar/parameters/X", Args: []any{true}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownCommand, outcome)
	assert.Empty(t, req.Calls())
}

func TestHandle_CatalogCommand(t *testing.T) {
	req := &recorder{}
	r := newRouter(req, map[string]string{"/avatar/parameters/Mute": "mute"})

	outcome, err := r.Handle(context.Background(), listener.Event{Address: "/avatar/parameters/Mute", Args: []any{true}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, []sent{{Mailbox: cnst.MailboxCompositor, Type: "mute"}}, req.Calls())
}

func TestHandle_SpecialCommandBypassesCatalog(t *testing.T) {
	req := &recorder{}
	r := newRouter(req, map[string]string{"/avatar/parameters/Shot": "screenshot"})

	outcome, err := r.Handle(context.Background(), listener.Event{Address: "/avatar/parameters/Shot", Args: []any{true}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, []sent{{
		Mailbox: cnst.MailboxCompositorSystemLayer,
		Type:    "request_screenshot",
		Data:    map[string]any{"screenshot_type": "stereo"},
	}}, req.Calls())
}

func TestHandle_SpecialCommandWithoutCatalog(t *testing.T) {
	req := &recorder{}
	r := New(req, NewMapping(map[string]string{"/s": "screenshot", "/m": "mute"}), zap.NewNop(), nil)

	outcome, err := r.Handle(context.Background(), listener.Event{Address: "/s", Args: []any{true}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)

	outcome, err = r.Handle(context.Background(), listener.Event{Address: "/m", Args: []any{true}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownCommand, outcome)
}

func TestHandle_SendErrorIsWrapped(t *testing.T) {
	req := &recorder{err: cnst.ErrNotConnected}
	r := newRouter(req, map[string]string{"/m": "mute"})

	outcome, err := r.Handle(context.Background(), listener.Event{Address: "/m", Args: []any{true}})
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, cnst.ErrRouterHandler)
	assert.ErrorIs(t, err, cnst.ErrNotConnected)
}

func TestHandle_PanicIsContained(t *testing.T) {
	r := newRouter(&recorder{panic: true}, map[string]string{"/m": "mute"})

	var (
		outcome Outcome
		err     error
	)
	assert.NotPanics(t, func() {
		outcome, err = r.Handle(context.Background(), listener.Event{Address: "/m", Args: []any{true}})
	})
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, errors.Is(err, cnst.ErrRouterHandler))
}

func TestMapping_SwapIsVisibleToRouter(t *testing.T) {
	req := &recorder{}
	mapping := NewMapping(nil)
	r := New(req, mapping, zap.NewNop(), nil)
	r.SetCatalog(catalog.New([]catalog.Command{{Command: "mute", Mailbox: cnst.MailboxCompositor}}))

	ev := listener.Event{Address: "/m", Args: []any{true}}
	outcome, _ := r.Handle(context.Background(), ev)
	assert.Equal(t, OutcomeUnmapped, outcome)

	source := map[string]string{"/m": "mute"}
	mapping.Store(source)
	source["/m"] = "changed"

	outcome, _ = r.Handle(context.Background(), ev)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, 1, mapping.Len())
}

func TestRun_ProcessesInOrderAndSurvivesFailures(t *testing.T) {
	req := &recorder{}
	r := newRouter(req, map[string]string{"/m": "mute", "/s": "screenshot"})

	events := make(chan listener.Event, 8)
	events <- listener.Event{Address: "/s", Args: []any{true}}
	events <- listener.Event{Address: "/m", Args: []any{false}}
	events <- listener.Event{Address: "/m", Args: []any{true}}
	close(events)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after events closed")
	}

	calls := req.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "request_screenshot", calls[0].Type)
	assert.Equal(t, "mute", calls[1].Type)
}

func TestResolve(t *testing.T) {
	cat := catalog.New([]catalog.Command{{Command: "mute", Mailbox: cnst.MailboxCompositor}})

	cmd, ok := Resolve("mute", cat)
	require.True(t, ok)
	assert.Equal(t, CatalogCommand{Name: "mute", Mailbox: cnst.MailboxCompositor}, cmd)

	cmd, ok = Resolve("screenshot", cat)
	require.True(t, ok)
	special, isSpecial := cmd.(SpecialCommand)
	require.True(t, isSpecial)
	assert.Equal(t, cnst.MailboxCompositorSystemLayer, special.Request.Mailbox)

	_, ok = Resolve("nope", nil)
	assert.False(t, ok)
	assert.Contains(t, SpecialNames(), "screenshot")
}
