package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artclient/internal/api"
	"artclient/internal/domain"
)

// newFixture spins up a platform API stand-in on a chi router.
func newFixture(t *testing.T) (*api.Client, *chi.Mux) {
	t.Helper()
	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, 5*time.Second), r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	client, r := newFixture(t)
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		var in api.LoginInput
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		if in.Email != "a@x.com" || in.Password != "p" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, api.AuthResult{
			User:  domain.User{ID: "u1", Username: "frida", Role: "artist"},
			Token: "tok-1",
		})
	})

	t.Run("Success", func(t *testing.T) {
		res, err := client.Login(context.Background(), api.LoginInput{Email: "a@x.com", Password: "p"})
		require.NoError(t, err)
		assert.Equal(t, "u1", res.User.ID)
		assert.Equal(t, "tok-1", res.Token)
	})

	t.Run("BadCredentials", func(t *testing.T) {
		_, err := client.Login(context.Background(), api.LoginInput{Email: "a@x.com", Password: "wrong"})
		assert.ErrorIs(t, err, domain.ErrAuthFailed)
	})
}

func TestBearerTokenAttached(t *testing.T) {
	client, r := newFixture(t)

	var gotAuth string
	r.Get("/api/messages/conversations", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []domain.Conversation{})
	})

	client.SetToken("tok-77")
	_, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-77", gotAuth)

	client.ClearToken()
	_, err = client.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestSendMessage(t *testing.T) {
	client, r := newFixture(t)
	r.Post("/api/messages/send", func(w http.ResponseWriter, req *http.Request) {
		var in api.SendMessageInput
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		writeJSON(w, http.StatusCreated, domain.Message{
			ID:             "m1",
			ConversationID: in.ConversationID,
			Content:        in.Content,
			Seq:            7,
		})
	})

	msg, err := client.SendMessage(context.Background(), api.SendMessageInput{
		ConversationID: "c1",
		Content:        "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, int64(7), msg.Seq)
}

func TestErrorMapping(t *testing.T) {
	client, r := newFixture(t)
	r.Get("/api/posts/{id}", func(w http.ResponseWriter, req *http.Request) {
		switch chi.URLParam(req, "id") {
		case "missing":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such post"})
		case "bad":
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed id"})
		default:
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "token expired"})
		}
	})

	_, err := client.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = client.GetPost(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = client.GetPost(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrAuthRejected)
}

func TestNetworkUnavailable(t *testing.T) {
	// Nothing listens here.
	client := api.NewClient("http://127.0.0.1:1", time.Second)
	_, err := client.ListPosts(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}

func TestMarkNotificationRead(t *testing.T) {
	client, r := newFixture(t)
	calls := 0
	r.Patch("/api/notifications/{id}/read", func(w http.ResponseWriter, req *http.Request) {
		calls++
		assert.Equal(t, "n1", chi.URLParam(req, "id"))
		writeJSON(w, http.StatusOK, map[string]bool{"read": true})
	})

	require.NoError(t, client.MarkNotificationRead(context.Background(), "n1"))
	// Idempotent server-side; repeating is harmless.
	require.NoError(t, client.MarkNotificationRead(context.Background(), "n1"))
	assert.Equal(t, 2, calls)
}
