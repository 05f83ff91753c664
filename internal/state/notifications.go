package state

import (
	"sync"

	"artclient/internal/domain"
)

// NotificationStore keeps the notification list, most recent first. Read
// flags are monotone: they flip false to true and never back.
type NotificationStore struct {
	mu   sync.RWMutex
	list []domain.Notification
	byID map[string]int // id -> index in list
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{byID: make(map[string]int)}
}

// ReplaceAll installs a full fetch result, keeping server order. Read
// flags already true locally stay true even if the snapshot disagrees.
func (s *NotificationStore) ReplaceAll(ns []domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevRead := make(map[string]bool, len(s.list))
	for _, n := range s.list {
		if n.Read {
			prevRead[n.ID] = true
		}
	}

	s.list = make([]domain.Notification, 0, len(ns))
	s.byID = make(map[string]int, len(ns))
	for _, n := range ns {
		if _, dup := s.byID[n.ID]; dup {
			continue
		}
		if prevRead[n.ID] {
			n.Read = true
		}
		s.byID[n.ID] = len(s.list)
		s.list = append(s.list, n)
	}
}

// AppendIncoming prepends a pushed notification unless its id is already
// present.
func (s *NotificationStore) AppendIncoming(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[n.ID]; ok {
		return
	}
	s.list = append([]domain.Notification{n}, s.list...)
	for id, i := range s.byID {
		s.byID[id] = i + 1
	}
	s.byID[n.ID] = 0
}

// MarkRead flips the read flag and reports whether anything changed.
// Unknown ids and already-read notifications are no-ops.
func (s *NotificationStore) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok || s.list[i].Read {
		return false
	}
	s.list[i].Read = true
	return true
}

// Notifications returns a snapshot, most recent first.
func (s *NotificationStore) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.list...)
}

// UnreadCount reports how many notifications are unread.
func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.list {
		if !n.Read {
			count++
		}
	}
	return count
}

// Reset drops all notification state (logout path).
func (s *NotificationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	s.byID = make(map[string]int)
}
