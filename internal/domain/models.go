package domain

import "time"

// Session is the authenticated user context bound to a bearer token.
// At most one Session is active per running client instance.
type Session struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"-"`
}

// ConnectionState describes the realtime channel lifecycle. The session
// manager owns all transitions; UI code only reads it.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
	ConnClosed       ConnectionState = "closed"
)

// User is a platform user as returned by the REST API.
type User struct {
	ID       string  `json:"_id"`
	Username string  `json:"username"`
	Email    string  `json:"email,omitempty"`
	Role     string  `json:"role,omitempty"`
	Profile  Profile `json:"profile,omitempty"`
}

// Profile holds the user-editable presentation fields.
type Profile struct {
	Avatar string `json:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty"`
}

// Conversation is a chat between two or more participants. Participant
// details may be absent on a stub conversation synthesized from an incoming
// message until the next fetch fills them in.
type Conversation struct {
	ID           string    `json:"_id"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
}

// Message is a single chat message. ID is empty on an optimistic local
// entry until the server confirms it. Seq is the server-assigned ordering
// key; servers that omit it order by SentAt.
type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
	Seq            int64     `json:"seq,omitempty"`
}

// Before reports whether m orders strictly before other under the
// server ordering: sequence number first, then timestamp, then id as a
// stable tie-break.
func (m Message) Before(other Message) bool {
	if m.Seq != other.Seq {
		return m.Seq < other.Seq
	}
	if !m.SentAt.Equal(other.SentAt) {
		return m.SentAt.Before(other.SentAt)
	}
	return m.ID < other.ID
}

// Notification is a platform notification. Read only ever transitions
// false to true.
type Notification struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	RelatedID string    `json:"relatedId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Post is a piece of creative content on the showcase feed.
type Post struct {
	ID        string    `json:"_id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	MediaType string    `json:"mediaType,omitempty"`
	Likes     []string  `json:"likes,omitempty"`
	Rank      int       `json:"rank,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Comment is a reply attached to a post.
type Comment struct {
	ID        string    `json:"_id"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
