// Package transport maintains the single realtime connection of the
// active session: authenticated dial, topic subscriptions, event dispatch
// and reconnection with backoff.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"artclient/internal/domain"
)

// Handler receives inbound events. Handlers run on the read loop
// goroutine, so per-topic delivery order matches server send order; they
// must not block for long.
type Handler func(domain.Event)

// Options configures the connector. The reconnect parameters are defaults,
// not a compatibility contract; config.Load exposes them as env knobs.
type Options struct {
	URL              string
	HandshakeTimeout time.Duration

	BackoffBase       time.Duration
	BackoffCap        time.Duration
	BackoffJitter     float64
	BackoffResetAfter time.Duration
}

func (o *Options) withDefaults() {
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap == 0 {
		o.BackoffCap = 30 * time.Second
	}
	if o.BackoffJitter == 0 {
		o.BackoffJitter = 0.2
	}
	if o.BackoffResetAfter == 0 {
		o.BackoffResetAfter = 60 * time.Second
	}
}

// outboundFrame is what the client emits: join / joinConversation /
// leaveConversation, mirroring the events the platform socket expects.
type outboundFrame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Connector owns one logical realtime connection. All lifecycle
// transitions go through the session manager; UI code never touches it.
type Connector struct {
	opts Options

	mu          sync.Mutex
	state       domain.ConnectionState
	conn        *websocket.Conn
	token       string
	userID      string
	topics      map[string]struct{}
	done        chan struct{}
	connectedAt time.Time

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[domain.EventKind][]Handler

	backoff *backoff.ExponentialBackOff
}

func NewConnector(opts Options) *Connector {
	opts.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.BackoffBase
	b.MaxInterval = opts.BackoffCap
	b.RandomizationFactor = opts.BackoffJitter
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // retry until closed
	b.Reset()

	return &Connector{
		opts:     opts,
		state:    domain.ConnDisconnected,
		topics:   make(map[string]struct{}),
		handlers: make(map[domain.EventKind][]Handler),
		backoff:  b,
	}
}

// On registers a handler for an event kind. All handlers for a kind are
// invoked in registration order for each event.
func (c *Connector) On(kind domain.EventKind, h Handler) {
	c.handlersMu.Lock()
	c.handlers[kind] = append(c.handlers[kind], h)
	c.handlersMu.Unlock()
}

// State returns the current connection state.
func (c *Connector) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open dials and authenticates the connection, announces the user scope,
// and starts the supervision loop. It fails with ErrAuthRejected when the
// server refuses the token (terminal) and ErrNetworkUnavailable otherwise
// (retryable by the caller). Opening an already-open connector is a no-op.
func (c *Connector) Open(ctx context.Context, token, userID string) error {
	c.mu.Lock()
	switch c.state {
	case domain.ConnConnecting, domain.ConnConnected, domain.ConnReconnecting:
		c.mu.Unlock()
		return nil
	}
	c.token = token
	c.userID = userID
	c.state = domain.ConnConnecting
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = domain.ConnDisconnected
		c.mu.Unlock()
		return err
	}

	if !c.adopt(conn, done) {
		conn.Close()
		return nil
	}
	c.announce(conn)
	c.dispatch(domain.NewLocalEvent(domain.EventConnect, domain.DisconnectInfo{}))

	go c.supervise(conn, done)
	return nil
}

func (c *Connector) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
		// The platform accepts the token either as an Authorization header
		// or via the bearer subprotocol; send both forms.
		Subprotocols: []string{"bearer", c.token},
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake refused with status %d", domain.ErrAuthRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrNetworkUnavailable, c.opts.URL, err)
	}
	return conn, nil
}

// adopt installs conn as the live connection unless the connector was
// closed while dialing.
func (c *Connector) adopt(conn *websocket.Conn, done chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.ConnClosed {
		return false
	}
	c.conn = conn
	c.state = domain.ConnConnected
	c.connectedAt = time.Now()
	return true
}

// announce re-establishes server-side scopes on a fresh connection: the
// user scope first, then every subscribed conversation topic.
func (c *Connector) announce(conn *websocket.Conn) {
	if err := c.emit(conn, "join", c.userID); err != nil {
		log.Printf("transport: join emit: %v", err)
		return
	}
	c.mu.Lock()
	topics := make([]string, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	c.mu.Unlock()
	for _, t := range topics {
		if err := c.emit(conn, "joinConversation", t); err != nil {
			log.Printf("transport: rejoin %s: %v", t, err)
		}
	}
}

func (c *Connector) emit(conn *websocket.Conn, event, data string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(outboundFrame{Event: event, Data: data})
}

// SubscribeTopic joins a per-conversation event scope. Subscribing to an
// already-subscribed topic is a no-op. The subscription survives
// reconnects until UnsubscribeTopic or Close.
func (c *Connector) SubscribeTopic(conversationID string) error {
	c.mu.Lock()
	if _, ok := c.topics[conversationID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.topics[conversationID] = struct{}{}
	conn := c.conn
	connected := c.state == domain.ConnConnected
	c.mu.Unlock()

	if connected {
		return c.emit(conn, "joinConversation", conversationID)
	}
	return nil
}

// UnsubscribeTopic leaves a conversation scope without touching others.
func (c *Connector) UnsubscribeTopic(conversationID string) error {
	c.mu.Lock()
	if _, ok := c.topics[conversationID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.topics, conversationID)
	conn := c.conn
	connected := c.state == domain.ConnConnected
	c.mu.Unlock()

	if connected {
		return c.emit(conn, "leaveConversation", conversationID)
	}
	return nil
}

// Close terminates the connection and stops reconnection. Idempotent.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.state == domain.ConnClosed || c.state == domain.ConnDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.ConnClosed
	conn := c.conn
	c.conn = nil
	done := c.done
	c.done = nil
	c.topics = make(map[string]struct{})
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
	}
	return nil
}

// supervise reads events until the connection drops, then reconnects with
// exponential backoff until it succeeds, the token is rejected, or the
// connector is closed.
func (c *Connector) supervise(conn *websocket.Conn, done chan struct{}) {
	for {
		readErr := c.readLoop(conn)

		select {
		case <-done:
			return
		default:
		}

		c.mu.Lock()
		// Backoff resets only after a sufficiently long healthy stretch,
		// so a flapping link keeps climbing toward the cap.
		if time.Since(c.connectedAt) >= c.opts.BackoffResetAfter {
			c.backoff.Reset()
		}
		c.state = domain.ConnReconnecting
		c.conn = nil
		c.mu.Unlock()

		reason := ""
		if readErr != nil {
			reason = readErr.Error()
		}
		c.dispatch(domain.NewLocalEvent(domain.EventDisconnect, domain.DisconnectInfo{Reason: reason}))

		next, ok := c.reconnect(done)
		if !ok {
			return
		}
		conn = next
	}
}

func (c *Connector) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := domain.DecodeEvent(data)
		if err != nil {
			log.Printf("transport: dropping frame: %v", err)
			continue
		}
		c.dispatch(ev)
	}
}

// reconnect retries the dial until success or a terminal condition. It
// returns false when supervision should stop.
func (c *Connector) reconnect(done chan struct{}) (*websocket.Conn, bool) {
	for {
		select {
		case <-done:
			return nil, false
		case <-time.After(c.backoff.NextBackOff()):
		}

		conn, err := c.dial(context.Background())
		if errors.Is(err, domain.ErrAuthRejected) {
			// The server invalidated the token mid-session; give up and let
			// the session manager tear everything down.
			c.dispatch(domain.NewLocalEvent(domain.EventDisconnect, domain.DisconnectInfo{
				Reason:   "session token rejected",
				Terminal: true,
			}))
			c.Close()
			return nil, false
		}
		if err != nil {
			log.Printf("transport: reconnect: %v", err)
			continue
		}

		if !c.adopt(conn, done) {
			conn.Close()
			return nil, false
		}
		c.announce(conn)
		c.dispatch(domain.NewLocalEvent(domain.EventConnect, domain.DisconnectInfo{}))
		return conn, true
	}
}

// dispatch invokes every registered handler for the event kind, in
// registration order, on the calling goroutine.
func (c *Connector) dispatch(ev domain.Event) {
	c.handlersMu.RLock()
	handlers := c.handlers[ev.Kind]
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}
