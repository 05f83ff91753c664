package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artclient/internal/domain"
	"artclient/internal/transport"
)

const goodToken = "tok-good"

type frame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// socketFixture is a platform socket stand-in: it authenticates the
// bearer token, records client emits, and lets tests push events or kill
// connections.
type socketFixture struct {
	srv       *httptest.Server
	frames    chan frame
	conns     chan *websocket.Conn
	rejectAll atomic.Bool

	mu   sync.Mutex
	live []*websocket.Conn
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()
	fx := &socketFixture{
		frames: make(chan frame, 64),
		conns:  make(chan *websocket.Conn, 8),
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	r := chi.NewRouter()
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		auth := req.Header.Get("Authorization")
		if fx.rejectAll.Load() || auth != "Bearer "+goodToken {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		fx.mu.Lock()
		fx.live = append(fx.live, conn)
		fx.mu.Unlock()
		fx.conns <- conn
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			fx.frames <- f
		}
	})

	fx.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		fx.mu.Lock()
		for _, c := range fx.live {
			c.Close()
		}
		fx.mu.Unlock()
		fx.srv.Close()
	})
	return fx
}

func (fx *socketFixture) url() string {
	return "ws://" + strings.TrimPrefix(fx.srv.URL, "http://") + "/ws"
}

func (fx *socketFixture) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fx.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func (fx *socketFixture) waitFrame(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-fx.frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return frame{}
	}
}

func (fx *socketFixture) push(t *testing.T, conn *websocket.Conn, kind, payload string) {
	t.Helper()
	err := conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"`+kind+`","payload":`+payload+`}`))
	require.NoError(t, err)
}

func fastOptions(url string) transport.Options {
	return transport.Options{
		URL:               url,
		BackoffBase:       10 * time.Millisecond,
		BackoffCap:        50 * time.Millisecond,
		BackoffJitter:     0.2,
		BackoffResetAfter: time.Minute,
	}
}

func TestOpenRejectedToken(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))

	err := c.Open(context.Background(), "tok-bad", "u1")
	assert.ErrorIs(t, err, domain.ErrAuthRejected)
	assert.Equal(t, domain.ConnDisconnected, c.State())
}

func TestOpenUnreachable(t *testing.T) {
	c := transport.NewConnector(fastOptions("ws://127.0.0.1:1/ws"))
	err := c.Open(context.Background(), goodToken, "u1")
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}

func TestOpenAnnouncesUserScope(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))
	defer c.Close()

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	assert.Equal(t, domain.ConnConnected, c.State())

	assert.Equal(t, frame{Event: "join", Data: "u1"}, fx.waitFrame(t))
}

func TestSubscribeTopicIdempotent(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))
	defer c.Close()

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	fx.waitFrame(t) // join

	require.NoError(t, c.SubscribeTopic("c1"))
	require.NoError(t, c.SubscribeTopic("c1"))

	assert.Equal(t, frame{Event: "joinConversation", Data: "c1"}, fx.waitFrame(t))
	select {
	case f := <-fx.frames:
		t.Fatalf("unexpected extra frame %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeLeavesOtherTopics(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))
	defer c.Close()

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	fx.waitFrame(t) // join
	require.NoError(t, c.SubscribeTopic("a"))
	require.NoError(t, c.SubscribeTopic("b"))
	fx.waitFrame(t)
	fx.waitFrame(t)

	require.NoError(t, c.UnsubscribeTopic("a"))
	assert.Equal(t, frame{Event: "leaveConversation", Data: "a"}, fx.waitFrame(t))
	// Unsubscribing an unknown topic is a no-op.
	require.NoError(t, c.UnsubscribeTopic("zzz"))
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))
	defer c.Close()

	var mu sync.Mutex
	var calls []string
	done := make(chan struct{}, 4)
	c.On(domain.EventMessage, func(ev domain.Event) {
		mu.Lock()
		calls = append(calls, "first")
		mu.Unlock()
		done <- struct{}{}
	})
	c.On(domain.EventMessage, func(ev domain.Event) {
		mu.Lock()
		calls = append(calls, "second")
		mu.Unlock()
		done <- struct{}{}
	})

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	conn := fx.waitConn(t)
	fx.waitFrame(t) // join

	fx.push(t, conn, "message", `{"_id":"m1","conversationId":"c1","content":"x"}`)
	fx.push(t, conn, "message", `{"_id":"m2","conversationId":"c1","content":"y"}`)

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("handlers not invoked")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "first", "second"}, calls)
}

func TestUnknownEventKindsAreDropped(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))
	defer c.Close()

	got := make(chan domain.Event, 2)
	c.On(domain.EventNotification, func(ev domain.Event) { got <- ev })

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	conn := fx.waitConn(t)
	fx.waitFrame(t) // join

	fx.push(t, conn, "presence", `{"who":"u2"}`)
	fx.push(t, conn, "notification", `{"_id":"n1","content":"liked your post"}`)

	select {
	case ev := <-got:
		n, err := ev.NotificationPayload()
		require.NoError(t, err)
		assert.Equal(t, "n1", n.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("notification never delivered")
	}
	assert.Empty(t, got)
}

func TestReconnectPreservesSubscriptions(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))
	defer c.Close()

	states := make(chan domain.EventKind, 8)
	c.On(domain.EventConnect, func(domain.Event) { states <- domain.EventConnect })
	c.On(domain.EventDisconnect, func(domain.Event) { states <- domain.EventDisconnect })

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	first := fx.waitConn(t)
	require.Equal(t, domain.EventConnect, <-states)
	fx.waitFrame(t) // join
	require.NoError(t, c.SubscribeTopic("a"))
	require.NoError(t, c.SubscribeTopic("b"))
	fx.waitFrame(t)
	fx.waitFrame(t)

	// Simulate an unexpected drop.
	first.Close()

	require.Equal(t, domain.EventDisconnect, <-states)
	second := fx.waitConn(t)
	select {
	case kind := <-states:
		require.Equal(t, domain.EventConnect, kind)
	case <-time.After(5 * time.Second):
		t.Fatal("no reconnect")
	}

	// The fresh connection re-announces the user and both topics without
	// any new SubscribeTopic calls.
	assert.Equal(t, frame{Event: "join", Data: "u1"}, fx.waitFrame(t))
	rejoined := map[string]bool{}
	for i := 0; i < 2; i++ {
		f := fx.waitFrame(t)
		assert.Equal(t, "joinConversation", f.Event)
		rejoined[f.Data] = true
	}
	assert.True(t, rejoined["a"] && rejoined["b"])

	// Events still flow after the cycle.
	got := make(chan domain.Event, 1)
	c.On(domain.EventMessage, func(ev domain.Event) { got <- ev })
	fx.push(t, second, "message", `{"_id":"m9","conversationId":"a","content":"hi"}`)
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no event after reconnect")
	}
}

func TestTerminalRejectionMidSession(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))
	defer c.Close()

	terminal := make(chan domain.DisconnectInfo, 2)
	c.On(domain.EventDisconnect, func(ev domain.Event) { terminal <- ev.DisconnectPayload() })

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	first := fx.waitConn(t)
	fx.waitFrame(t) // join

	// Invalidate the token server-side, then drop the connection.
	fx.rejectAll.Store(true)
	first.Close()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case info := <-terminal:
			if info.Terminal {
				assert.Eventually(t, func() bool {
					return c.State() == domain.ConnClosed
				}, time.Second, 10*time.Millisecond)
				return
			}
		case <-deadline:
			t.Fatal("terminal disconnect never delivered")
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	fx := newSocketFixture(t)
	c := transport.NewConnector(fastOptions(fx.url()))

	require.NoError(t, c.Open(context.Background(), goodToken, "u1"))
	fx.waitConn(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, domain.ConnClosed, c.State())

	// An explicit close must not trigger reconnection.
	select {
	case <-fx.conns:
		t.Fatal("unexpected reconnect after Close")
	case <-time.After(200 * time.Millisecond):
	}
}
