// Package mailboxtest provides a fake mailbox endpoint for tests.
package mailboxtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const waitTimeout = 5 * time.Second

// Command is one discoverable command
type Command struct {
	Command string `json:"command"`
	Mailbox string `json:"mailbox"`
}

// Runtime is a websocket endpoint that records every frame it receives and,
// when discovery is enabled, answers get_debug_commands requests.
type Runtime struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	frames   chan string
	conns    chan *websocket.Conn
	reject   atomic.Int32
	accepted atomic.Int32

	mu        sync.Mutex
	origin    string
	all       []*websocket.Conn
	writeMu   map[*websocket.Conn]*sync.Mutex
	discovery map[string][]Command
}

func NewRuntime(t testing.TB) *Runtime {
	t.Helper()
	r := &Runtime{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		frames:   make(chan string, 256),
		conns:    make(chan *websocket.Conn, 32),
		writeMu:  make(map[*websocket.Conn]*sync.Mutex),
	}
	r.srv = httptest.NewServer(http.HandlerFunc(r.handle))
	t.Cleanup(func() {
		r.DropAll()
		r.srv.Close()
	})
	return r
}

// URL returns the ws:// address of the endpoint
func (r *Runtime) URL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/"
}

// Origin returns the Origin header of the latest connection
func (r *Runtime) Origin() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.origin
}

// Accepted counts upgraded connections
func (r *Runtime) Accepted() int {
	return int(r.accepted.Load())
}

// RejectNext fails the next n handshakes with 503
func (r *Runtime) RejectNext(n int32) {
	r.reject.Store(n)
}

// Rejecting returns how many handshakes are still to be rejected
func (r *Runtime) Rejecting() int32 {
	return r.reject.Load()
}

// SetDiscovery enables automatic get_debug_commands responses. A mailbox
// without an entry answers with a payload that has no commands field.
func (r *Runtime) SetDiscovery(discovery map[string][]Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovery = discovery
}

// DropAll closes every server side connection
func (r *Runtime) DropAll() {
	r.mu.Lock()
	conns := append([]*websocket.Conn(nil), r.all...)
	r.all = nil
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// Write sends a text frame on conn
func (r *Runtime) Write(conn *websocket.Conn, frame string) error {
	r.mu.Lock()
	mu := r.writeMu[conn]
	r.mu.Unlock()
	if mu == nil {
		return fmt.Errorf("unknown connection")
	}
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// NextFrame waits for the next received frame
func (r *Runtime) NextFrame(t testing.TB) string {
	t.Helper()
	select {
	case frame := <-r.frames:
		return frame
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

// WaitFrame skips frames until one satisfies match
func (r *Runtime) WaitFrame(t testing.TB, match func(string) bool) string {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case frame := <-r.frames:
			if match(frame) {
				return frame
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching frame")
			return ""
		}
	}
}

// NextConn waits for the next accepted connection
func (r *Runtime) NextConn(t testing.TB) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-r.conns:
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func (r *Runtime) handle(w http.ResponseWriter, req *http.Request) {
	if r.reject.Load() > 0 {
		r.reject.Add(-1)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.origin = req.Header.Get("Origin")
	r.all = append(r.all, conn)
	r.writeMu[conn] = &sync.Mutex{}
	r.mu.Unlock()
	r.accepted.Add(1)

	select {
	case r.conns <- conn:
	default:
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame := string(data)
		select {
		case r.frames <- frame:
		default:
		}
		r.answer(conn, frame)
	}
}

func (r *Runtime) answer(conn *websocket.Conn, frame string) {
	parts := strings.SplitN(frame, " ", 3)
	if len(parts) != 3 || parts[0] != "mailbox_send" {
		return
	}
	payload := gjson.Parse(parts[2])
	if payload.Get("type").String() != "get_debug_commands" || !payload.Get("message_id").Exists() {
		return
	}

	r.mu.Lock()
	discovery := r.discovery
	r.mu.Unlock()
	if discovery == nil {
		return
	}

	id := payload.Get("message_id").Int()
	var body string
	if cmds, ok := discovery[parts[1]]; ok {
		items := make([]string, 0, len(cmds))
		for _, c := range cmds {
			items = append(items, fmt.Sprintf(`{"command":%q,"mailbox":%q}`, c.Command, c.Mailbox))
		}
		body = fmt.Sprintf(`{"message_id":%d,"commands":[%s]}`, id, strings.Join(items, ","))
	} else {
		body = fmt.Sprintf(`{"message_id":%d,"error":"unknown mailbox"}`, id)
	}
	_ = r.Write(conn, body)
}
