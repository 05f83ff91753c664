// Package state holds the in-memory view state driven by REST fetches and
// realtime pushes. Merges are idempotent and commutative so fetch results
// and pushes can arrive in any order without changing the final state.
package state

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"artclient/internal/domain"
)

// PendingMessage is an optimistic local entry awaiting server
// confirmation. Failed entries stay visible so the user can retry.
type PendingMessage struct {
	LocalID string
	Message domain.Message
	Failed  bool
}

// ConversationView is the read-only snapshot handed to the rendering
// layer: confirmed messages in server order, then optimistic entries.
type ConversationView struct {
	ID           string
	Participants []domain.User
	Stub         bool
	Messages     []domain.Message
	Pending      []PendingMessage
}

type conversationEntry struct {
	participants []domain.User
	stub         bool
	messages     []domain.Message // server order, deduplicated by id
	byID         map[string]struct{}
	pending      []PendingMessage
}

// ConversationStore maps conversation id to its ordered message list.
// Safe for concurrent use; push handlers may race REST priming.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*conversationEntry
	order []string // conversation ids in first-seen order
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: make(map[string]*conversationEntry)}
}

func (s *ConversationStore) entry(id string) *conversationEntry {
	e, ok := s.convs[id]
	if !ok {
		e = &conversationEntry{byID: make(map[string]struct{})}
		s.convs[id] = e
		s.order = append(s.order, id)
	}
	return e
}

// insertOrdered places msg into the confirmed list by server order. The
// common case is an append; late-arriving older messages walk back from
// the end.
func (e *conversationEntry) insertOrdered(msg domain.Message) {
	if _, dup := e.byID[msg.ID]; dup {
		return
	}
	e.byID[msg.ID] = struct{}{}
	i := len(e.messages)
	for i > 0 && msg.Before(e.messages[i-1]) {
		i--
	}
	e.messages = append(e.messages, domain.Message{})
	copy(e.messages[i+1:], e.messages[i:])
	e.messages[i] = msg
}

// UpsertFromFetch merges a full REST snapshot of a conversation: union by
// message id, server ordering kept. Participants replace any stub data.
func (s *ConversationStore) UpsertFromFetch(conv domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(conv.ID)
	if len(conv.Participants) > 0 {
		e.participants = append([]domain.User(nil), conv.Participants...)
		e.stub = false
	}
	for _, msg := range conv.Messages {
		if msg.ID == "" {
			continue
		}
		e.insertOrdered(msg)
	}
}

// AppendIncoming applies a pushed message. An unknown conversation id
// yields a stub conversation holding just that message; duplicates by id
// are ignored. It reports whether a stub was created, so the caller can
// schedule a fetch for the missing details.
func (s *ConversationStore) AppendIncoming(msg domain.Message) (createdStub bool) {
	if msg.ID == "" || msg.ConversationID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.convs[msg.ConversationID]
	if !ok {
		e = s.entry(msg.ConversationID)
		e.stub = true
		createdStub = true
	}
	e.insertOrdered(msg)
	return createdStub
}

// AppendOptimistic inserts a provisional message and returns its local id.
// Optimistic entries display after the last confirmed message until
// resolved.
func (s *ConversationStore) AppendOptimistic(conversationID string, draft domain.Message) string {
	localID := uuid.NewString()
	draft.ID = ""
	draft.ConversationID = conversationID

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(conversationID)
	e.pending = append(e.pending, PendingMessage{LocalID: localID, Message: draft})
	return localID
}

// ConfirmOptimistic replaces the provisional entry with the confirmed
// message. If the entry was already evicted, the confirmed message is
// merged in anyway; either way exactly one copy ends up in the list.
func (s *ConversationStore) ConfirmOptimistic(localID string, confirmed domain.Message) {
	if confirmed.ID == "" || confirmed.ConversationID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removePending(localID)
	s.entry(confirmed.ConversationID).insertOrdered(confirmed)
}

// FailOptimistic flags the provisional entry as failed-to-send. It stays
// visible; it is never silently dropped.
func (s *ConversationStore) FailOptimistic(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.convs {
		for i := range e.pending {
			if e.pending[i].LocalID == localID {
				e.pending[i].Failed = true
				return
			}
		}
	}
}

func (s *ConversationStore) removePending(localID string) {
	for _, e := range s.convs {
		for i := range e.pending {
			if e.pending[i].LocalID == localID {
				e.pending = append(e.pending[:i], e.pending[i+1:]...)
				return
			}
		}
	}
}

// Conversations returns snapshots of every known conversation in
// first-seen order.
func (s *ConversationStore) Conversations() []ConversationView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]ConversationView, 0, len(s.order))
	for _, id := range s.order {
		views = append(views, s.viewLocked(id))
	}
	return views
}

// Conversation returns a snapshot of one conversation.
func (s *ConversationStore) Conversation(id string) (ConversationView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.convs[id]; !ok {
		return ConversationView{}, false
	}
	return s.viewLocked(id), true
}

func (s *ConversationStore) viewLocked(id string) ConversationView {
	e := s.convs[id]
	return ConversationView{
		ID:           id,
		Participants: append([]domain.User(nil), e.participants...),
		Stub:         e.stub,
		Messages:     append([]domain.Message(nil), e.messages...),
		Pending:      append([]PendingMessage(nil), e.pending...),
	}
}

// TopicIDs returns the ids of all known conversations, sorted, for
// subscription priming.
func (s *ConversationStore) TopicIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := append([]string(nil), s.order...)
	sort.Strings(ids)
	return ids
}

// Len reports the number of known conversations.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// Reset drops all conversation state (logout path).
func (s *ConversationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = make(map[string]*conversationEntry)
	s.order = nil
}
