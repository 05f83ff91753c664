package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"artclient/internal/domain"
)

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is what the auth endpoints return on success.
type AuthResult struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// Login exchanges credentials for a session. Bad credentials surface as
// ErrAuthFailed: rejection here means the credentials are wrong, not that
// an existing session expired.
func (c *Client) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", in, &res)
	if errors.Is(err, domain.ErrAuthRejected) {
		return AuthResult{}, fmt.Errorf("%w: invalid credentials", domain.ErrAuthFailed)
	}
	if err != nil {
		return AuthResult{}, err
	}
	return res, nil
}

func (c *Client) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", in, &res); err != nil {
		return AuthResult{}, err
	}
	return res, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/auth/forgot-password", body, nil)
}

func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body := map[string]string{"password": newPassword}
	return c.do(ctx, http.MethodPost, "/api/auth/reset-password/"+resetToken, body, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, email, code string) (AuthResult, error) {
	body := map[string]string{"email": email, "otp": code}
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify-otp", body, &res); err != nil {
		return AuthResult{}, err
	}
	return res, nil
}

func (c *Client) ResendOTP(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/auth/resend-otp", body, nil)
}

func (c *Client) ChangePassword(ctx context.Context, current, updated string) error {
	body := map[string]string{"currentPassword": current, "newPassword": updated}
	return c.do(ctx, http.MethodPost, "/api/auth/change-password", body, nil)
}
