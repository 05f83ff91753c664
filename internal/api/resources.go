package api

import (
	"context"
	"net/http"

	"artclient/internal/domain"
)

// Users.

func (c *Client) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+id, nil, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (c *Client) GetProfile(ctx context.Context) (domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", nil, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

func (c *Client) UpdateUser(ctx context.Context, id string, in UserUpdate) (domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodPatch, "/api/users/"+id, in, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Posts and comments.

type PostInput struct {
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

func (c *Client) ListPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (domain.Post, error) {
	var p domain.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+id, nil, &p); err != nil {
		return domain.Post{}, err
	}
	return p, nil
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (domain.Post, error) {
	var p domain.Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", in, &p); err != nil {
		return domain.Post{}, err
	}
	return p, nil
}

func (c *Client) LikePost(ctx context.Context, id string) (domain.Post, error) {
	var p domain.Post
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+id+"/like", nil, &p); err != nil {
		return domain.Post{}, err
	}
	return p, nil
}

func (c *Client) ListUserPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	var posts []domain.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/user/"+userID, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := c.do(ctx, http.MethodGet, "/api/comments/"+postID, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) AddComment(ctx context.Context, postID, content string) (domain.Comment, error) {
	body := map[string]string{"content": content}
	var cm domain.Comment
	if err := c.do(ctx, http.MethodPost, "/api/comments/"+postID, body, &cm); err != nil {
		return domain.Comment{}, err
	}
	return cm, nil
}

// Ranks.

func (c *Client) TopRanked(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if err := c.do(ctx, http.MethodGet, "/api/judge/top-ranked", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
