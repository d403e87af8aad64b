package listener

import (
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/config"
)

func listen(t *testing.T, queue int) *Listener {
	t.Helper()
	l, err := Listen(config.OSCConfig{ListenAddress: "127.0.0.1", ListenPort: 0, QueueSize: queue}, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func client(t *testing.T, l *Listener) *osc.Client {
	t.Helper()
	addr := l.Addr().(*net.UDPAddr)
	return osc.NewClient("127.0.0.1", addr.Port)
}

func next(t *testing.T, l *Listener) Event {
	t.Helper()
	select {
	case ev, ok := <-l.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestListener_DeliversMessagesInOrder(t *testing.T) {
	l := listen(t, 16)
	c := client(t, l)

	require.NoError(t, c.Send(osc.NewMessage("/avatar/parameters/Mute", true)))
	require.NoError(t, c.Send(osc.NewMessage("/avatar/parameters/Mute", false)))
	require.NoError(t, c.Send(osc.NewMessage("/avatar/parameters/Level", int32(3), "x")))

	ev := next(t, l)
	assert.Equal(t, "/avatar/parameters/Mute", ev.Address)
	assert.Equal(t, []any{true}, ev.Args)

	ev = next(t, l)
	assert.Equal(t, []any{false}, ev.Args)

	ev = next(t, l)
	assert.Equal(t, "/avatar/parameters/Level", ev.Address)
	assert.Equal(t, []any{int32(3), "x"}, ev.Args)
}

func TestListener_FlattensBundles(t *testing.T) {
	l := listen(t, 16)
	c := client(t, l)

	bundle := osc.NewBundle(time.Now())
	require.NoError(t, bundle.Append(osc.NewMessage("/a", true)))
	require.NoError(t, bundle.Append(osc.NewMessage("/b", true)))
	require.NoError(t, c.Send(bundle))

	assert.Equal(t, "/a", next(t, l).Address)
	assert.Equal(t, "/b", next(t, l).Address)
}

func TestListener_CloseClosesEvents(t *testing.T) {
	l := listen(t, 4)
	require.NoError(t, l.Close())

	_, ok := <-l.Events()
	assert.False(t, ok)
	assert.NoError(t, l.Close())
}

func TestListener_BindError(t *testing.T) {
	l := listen(t, 4)
	addr := l.Addr().(*net.UDPAddr)

	_, err := Listen(config.OSCConfig{ListenAddress: "127.0.0.1", ListenPort: addr.Port}, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestQueueDispatcher_DropsWhenFull(t *testing.T) {
	events := make(chan Event, 1)
	d := &queueDispatcher{events: events, logger: zap.NewNop()}

	inner := osc.NewBundle(time.Now())
	require.NoError(t, inner.Append(osc.NewMessage("/nested", true)))
	outer := osc.NewBundle(time.Now())
	require.NoError(t, outer.Append(inner))

	d.Dispatch(outer)
	d.Dispatch(osc.NewMessage("/dropped", true))

	require.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, "/nested", ev.Address)
}
