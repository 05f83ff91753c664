package api

import (
	"context"
	"net/http"

	"artclient/internal/domain"
)

// ListConversations returns every conversation of the authenticated user,
// messages included, in server order.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// StartConversation creates (or returns the existing) direct conversation
// with the recipient.
func (c *Client) StartConversation(ctx context.Context, recipientID string) (domain.Conversation, error) {
	body := map[string]string{"recipientId": recipientID}
	var conv domain.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/messages/conversation", body, &conv); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

type SendMessageInput struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// SendMessage durably sends a message and returns the server-confirmed
// copy carrying the assigned id and sequence.
func (c *Client) SendMessage(ctx context.Context, in SendMessageInput) (domain.Message, error) {
	var msg domain.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages/send", in, &msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Notifications.

func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var ns []domain.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

// MarkNotificationRead confirms a read flag server-side. The operation is
// idempotent; repeating it is harmless.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/notifications/"+id+"/read", nil, nil)
}
