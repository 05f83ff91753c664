// Package session orchestrates the authenticated realtime session: it owns
// the connection lifecycle and mediates every write into the conversation
// and notification stores. The rendering layer reads snapshots and emits
// intents; it never touches the connection or the stores directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"artclient/internal/api"
	"artclient/internal/domain"
	"artclient/internal/security"
	"artclient/internal/state"
	"artclient/internal/transport"
)

// State is the session lifecycle phase.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateActive         State = "active"
	StateTerminating    State = "terminating"
)

// Manager composes the credential store, REST client, transport connector
// and both state stores into the session state machine
// anonymous -> authenticating -> active -> terminating -> anonymous.
type Manager struct {
	creds  domain.CredentialStore
	api    *api.Client
	conn   *transport.Connector
	convs  *state.ConversationStore
	notifs *state.NotificationStore

	mu              sync.Mutex
	st              State
	sess            domain.Session
	hasSession      bool
	storageDegraded bool
	convFetchSeq    uint64 // issuance counter; last fetch wins
	onChange        func()
}

// NewManager wires the components together and registers the push-event
// handlers. Handlers are registered once; events only flow while a
// connection exists, which is exactly while a session exists.
func NewManager(
	creds domain.CredentialStore,
	apiClient *api.Client,
	conn *transport.Connector,
	convs *state.ConversationStore,
	notifs *state.NotificationStore,
) *Manager {
	m := &Manager{
		creds:  creds,
		api:    apiClient,
		conn:   conn,
		convs:  convs,
		notifs: notifs,
		st:     StateAnonymous,
	}
	conn.On(domain.EventMessage, m.handleMessage)
	conn.On(domain.EventNotification, m.handleNotification)
	conn.On(domain.EventConnect, func(domain.Event) { m.notifyChange() })
	conn.On(domain.EventDisconnect, m.handleDisconnect)
	return m
}

// SetOnChange registers a callback invoked after any observable state
// change, so the rendering layer knows to re-read snapshots.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Manager) notifyChange() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Session returns the active session, if any.
func (m *Manager) Session() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, m.hasSession
}

// ConnectionState reports the realtime channel state.
func (m *Manager) ConnectionState() domain.ConnectionState {
	return m.conn.State()
}

// StorageDegraded reports whether the session is running in-memory-only
// because durable storage was unavailable.
func (m *Manager) StorageDegraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storageDegraded
}

// Conversations returns read-only conversation snapshots.
func (m *Manager) Conversations() []state.ConversationView {
	return m.convs.Conversations()
}

// Conversation returns one conversation snapshot.
func (m *Manager) Conversation(id string) (state.ConversationView, bool) {
	return m.convs.Conversation(id)
}

// Notifications returns the notification list, most recent first.
func (m *Manager) Notifications() []domain.Notification {
	return m.notifs.Notifications()
}

// UnreadCount reports the unread notification count.
func (m *Manager) UnreadCount() int {
	return m.notifs.UnreadCount()
}

// Login authenticates against the auth API and brings the session to
// active: credentials saved, connection open, stores primed, topics
// subscribed. Initialization is all-or-nothing; any failure returns the
// manager to anonymous with nothing half-built.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := m.enterAuthenticating(); err != nil {
		return err
	}

	res, err := m.api.Login(ctx, api.LoginInput{Email: email, Password: password})
	if err != nil {
		m.setState(StateAnonymous)
		return err
	}

	sess := domain.Session{
		UserID:   res.User.ID,
		Username: res.User.Username,
		Role:     res.User.Role,
		Token:    res.Token,
	}
	return m.activate(ctx, sess)
}

// Resume restores a persisted session without re-authenticating, the
// startup path after a process restart. It reports whether a session was
// resumed; a missing, unreadable or expired credential record simply
// leaves the manager anonymous.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	if err := m.enterAuthenticating(); err != nil {
		return false, err
	}

	sess, ok, err := m.creds.Load()
	if err != nil {
		// Unreadable storage is treated as "no session".
		log.Printf("session: credential load: %v", err)
		m.mu.Lock()
		m.storageDegraded = true
		m.st = StateAnonymous
		m.mu.Unlock()
		return false, nil
	}
	if !ok {
		m.setState(StateAnonymous)
		return false, nil
	}
	if security.Expired(sess.Token, time.Now()) {
		if err := m.creds.Clear(); err != nil {
			log.Printf("session: clearing expired credentials: %v", err)
		}
		m.setState(StateAnonymous)
		return false, nil
	}

	if err := m.activate(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) enterAuthenticating() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st != StateAnonymous {
		return fmt.Errorf("%w: session is %s", domain.ErrInvalidInput, m.st)
	}
	m.st = StateAuthenticating
	return nil
}

func (m *Manager) setState(st State) {
	m.mu.Lock()
	m.st = st
	m.mu.Unlock()
	m.notifyChange()
}

// activate performs the active-state entry sequence: save credentials,
// open the connection, prime both stores, subscribe known topics.
func (m *Manager) activate(ctx context.Context, sess domain.Session) error {
	degraded := false
	if err := m.creds.Save(sess); err != nil {
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			m.setState(StateAnonymous)
			return err
		}
		// Degrade to an in-memory-only session; the login itself succeeds.
		log.Printf("session: storage degraded, session will not survive restart: %v", err)
		degraded = true
	}

	m.api.SetToken(sess.Token)

	if err := m.conn.Open(ctx, sess.Token, sess.UserID); err != nil {
		m.rollback(err)
		return err
	}

	convs, err := m.api.ListConversations(ctx)
	if err != nil {
		m.rollback(err)
		return fmt.Errorf("prime conversations: %w", err)
	}
	notifs, err := m.api.ListNotifications(ctx)
	if err != nil {
		m.rollback(err)
		return fmt.Errorf("prime notifications: %w", err)
	}

	for _, conv := range convs {
		m.convs.UpsertFromFetch(conv)
	}
	m.notifs.ReplaceAll(notifs)

	for _, id := range m.convs.TopicIDs() {
		if err := m.conn.SubscribeTopic(id); err != nil {
			log.Printf("session: subscribe %s: %v", id, err)
		}
	}

	m.mu.Lock()
	m.sess = sess
	m.hasSession = true
	m.storageDegraded = degraded
	m.st = StateActive
	m.mu.Unlock()
	m.notifyChange()

	log.Printf("session: active as %s", sess.Username)
	return nil
}

// rollback undoes a partial activation so no error leaves the connection
// or stores half-initialized. Persisted credentials survive transient
// failures (a later Resume may succeed) but not a rejected token.
func (m *Manager) rollback(cause error) {
	m.conn.Close()
	m.api.ClearToken()
	if errors.Is(cause, domain.ErrAuthRejected) {
		if err := m.creds.Clear(); err != nil {
			log.Printf("session: rollback credential clear: %v", err)
		}
	}
	m.convs.Reset()
	m.notifs.Reset()
	m.setState(StateAnonymous)
}

// Logout tears the session down: credentials cleared, connection closed,
// stores emptied. Calling it while anonymous or already terminating is a
// no-op.
func (m *Manager) Logout() error {
	m.mu.Lock()
	if m.st == StateAnonymous || m.st == StateTerminating {
		m.mu.Unlock()
		return nil
	}
	m.st = StateTerminating
	m.mu.Unlock()
	m.notifyChange()

	if err := m.creds.Clear(); err != nil {
		log.Printf("session: credential clear: %v", err)
	}
	m.conn.Close()
	m.convs.Reset()
	m.notifs.Reset()
	m.api.ClearToken()

	m.mu.Lock()
	m.sess = domain.Session{}
	m.hasSession = false
	m.st = StateAnonymous
	m.mu.Unlock()
	m.notifyChange()
	return nil
}

// SendMessage inserts an optimistic entry and sends the message durably in
// the background. The returned local id identifies the entry until the
// server confirms it. A send, once initiated, always resolves to confirmed
// or failed even if the caller's context is cancelled by navigation.
func (m *Manager) SendMessage(ctx context.Context, conversationID, content string) (string, error) {
	m.mu.Lock()
	if m.st != StateActive {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: no active session", domain.ErrInvalidInput)
	}
	senderID := m.sess.UserID
	m.mu.Unlock()

	draft := domain.Message{
		SenderID: senderID,
		Content:  content,
		SentAt:   time.Now(),
	}
	localID := m.convs.AppendOptimistic(conversationID, draft)
	m.notifyChange()

	go m.resolveSend(context.WithoutCancel(ctx), localID, conversationID, content)
	return localID, nil
}

func (m *Manager) resolveSend(ctx context.Context, localID, conversationID, content string) {
	msg, err := m.api.SendMessage(ctx, api.SendMessageInput{
		ConversationID: conversationID,
		Content:        content,
	})
	if err != nil {
		m.convs.FailOptimistic(localID)
		log.Printf("session: %v: %v", domain.ErrSendFailed, err)
	} else {
		m.convs.ConfirmOptimistic(localID, msg)
	}
	m.notifyChange()
}

// MarkRead flips the notification read flag locally and confirms it to the
// server fire-and-forget. The local flag is never rolled back: the server
// operation is idempotent, so at-least-once delivery is harmless.
func (m *Manager) MarkRead(ctx context.Context, notificationID string) {
	if !m.notifs.MarkRead(notificationID) {
		return
	}
	m.notifyChange()

	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := m.api.MarkNotificationRead(ctx, notificationID); err != nil {
			log.Printf("session: mark-read %s: %v", notificationID, err)
		}
	}()
}

// OpenConversation subscribes the conversation topic (entering the screen)
// and refreshes conversation state in the background.
func (m *Manager) OpenConversation(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	if m.st != StateActive {
		m.mu.Unlock()
		return fmt.Errorf("%w: no active session", domain.ErrInvalidInput)
	}
	m.mu.Unlock()

	if err := m.conn.SubscribeTopic(conversationID); err != nil {
		log.Printf("session: subscribe %s: %v", conversationID, err)
	}
	m.refreshConversations(context.WithoutCancel(ctx))
	return nil
}

// CloseConversation leaves the conversation topic without affecting other
// subscriptions. In-flight sends are unaffected.
func (m *Manager) CloseConversation(conversationID string) {
	if err := m.conn.UnsubscribeTopic(conversationID); err != nil {
		log.Printf("session: unsubscribe %s: %v", conversationID, err)
	}
}

// StartConversation creates (or fetches) the direct conversation with the
// recipient and subscribes its topic.
func (m *Manager) StartConversation(ctx context.Context, recipientID string) (state.ConversationView, error) {
	m.mu.Lock()
	if m.st != StateActive {
		m.mu.Unlock()
		return state.ConversationView{}, fmt.Errorf("%w: no active session", domain.ErrInvalidInput)
	}
	m.mu.Unlock()

	conv, err := m.api.StartConversation(ctx, recipientID)
	if err != nil {
		return state.ConversationView{}, err
	}
	m.convs.UpsertFromFetch(conv)
	if err := m.conn.SubscribeTopic(conv.ID); err != nil {
		log.Printf("session: subscribe %s: %v", conv.ID, err)
	}
	m.notifyChange()

	view, _ := m.convs.Conversation(conv.ID)
	return view, nil
}

// refreshConversations re-fetches the conversation list. Results are
// applied last-fetch-wins by issuance order: a superseded fetch that
// resolves late is discarded.
func (m *Manager) refreshConversations(ctx context.Context) {
	m.mu.Lock()
	m.convFetchSeq++
	seq := m.convFetchSeq
	m.mu.Unlock()

	go func() {
		convs, err := m.api.ListConversations(ctx)
		if err != nil {
			log.Printf("session: refresh conversations: %v", err)
			return
		}

		m.mu.Lock()
		stale := seq != m.convFetchSeq
		active := m.st == StateActive
		m.mu.Unlock()
		if stale || !active {
			return
		}

		for _, conv := range convs {
			m.convs.UpsertFromFetch(conv)
		}
		m.notifyChange()
	}()
}

func (m *Manager) handleMessage(ev domain.Event) {
	msg, err := ev.MessagePayload()
	if err != nil {
		log.Printf("session: %v", err)
		return
	}
	if m.convs.AppendIncoming(msg) {
		// Unknown conversation: a stub now holds the message; fetch the
		// participants and any history we missed.
		if err := m.conn.SubscribeTopic(msg.ConversationID); err != nil {
			log.Printf("session: subscribe %s: %v", msg.ConversationID, err)
		}
		m.refreshConversations(context.Background())
	}
	m.notifyChange()
}

func (m *Manager) handleNotification(ev domain.Event) {
	n, err := ev.NotificationPayload()
	if err != nil {
		log.Printf("session: %v", err)
		return
	}
	m.notifs.AppendIncoming(n)
	m.notifyChange()
}

func (m *Manager) handleDisconnect(ev domain.Event) {
	info := ev.DisconnectPayload()
	if info.Terminal {
		// Token invalidated server-side; tear down without user action.
		log.Printf("session: %s, logging out", info.Reason)
		go m.Logout()
		return
	}
	m.notifyChange()
}
