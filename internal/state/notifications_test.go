package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artclient/internal/domain"
	"artclient/internal/state"
)

func notif(id string) domain.Notification {
	return domain.Notification{ID: id, Content: "note " + id}
}

func TestAppendIncomingPrepends(t *testing.T) {
	s := state.NewNotificationStore()
	s.ReplaceAll([]domain.Notification{notif("n1"), notif("n2")})

	s.AppendIncoming(notif("n3"))

	list := s.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, "n3", list[0].ID)
	assert.Equal(t, "n1", list[1].ID)
}

func TestAppendIncomingIgnoresKnownID(t *testing.T) {
	s := state.NewNotificationStore()
	s.ReplaceAll([]domain.Notification{notif("n1")})

	s.AppendIncoming(notif("n1"))

	assert.Len(t, s.Notifications(), 1)
}

func TestMarkReadIdempotent(t *testing.T) {
	s := state.NewNotificationStore()
	s.ReplaceAll([]domain.Notification{notif("n1")})

	assert.True(t, s.MarkRead("n1"))
	after := s.Notifications()

	assert.False(t, s.MarkRead("n1"))
	assert.Equal(t, after, s.Notifications())
	assert.Zero(t, s.UnreadCount())
}

func TestMarkReadUnknownID(t *testing.T) {
	s := state.NewNotificationStore()
	assert.False(t, s.MarkRead("nope"))
}

func TestReplaceAllKeepsLocalReadFlags(t *testing.T) {
	s := state.NewNotificationStore()
	s.ReplaceAll([]domain.Notification{notif("n1"), notif("n2")})
	s.MarkRead("n1")

	// The server snapshot may lag the fire-and-forget confirmation; the
	// flag never goes back to unread.
	s.ReplaceAll([]domain.Notification{notif("n1"), notif("n2")})

	list := s.Notifications()
	assert.True(t, list[0].Read)
	assert.False(t, list[1].Read)
}

func TestNotificationReset(t *testing.T) {
	s := state.NewNotificationStore()
	s.ReplaceAll([]domain.Notification{notif("n1")})

	s.Reset()

	assert.Empty(t, s.Notifications())
	assert.Zero(t, s.UnreadCount())
}
