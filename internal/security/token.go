package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo holds claims extracted from a bearer token, when the token
// happens to be a JWT. The client treats the token as opaque otherwise.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Inspect extracts the subject and expiry from a JWT without verifying the
// signature; verification is the server's job, the client only uses the
// claims for proactive expiry handling. Returns false for non-JWT tokens.
func Inspect(tokenStr string) (TokenInfo, bool) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return TokenInfo{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenInfo{}, false
	}

	var info TokenInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, true
}

// Expired reports whether the token carries an expiry in the past. Tokens
// without a readable expiry are never considered expired client-side.
func Expired(tokenStr string, now time.Time) bool {
	info, ok := Inspect(tokenStr)
	if !ok || info.ExpiresAt.IsZero() {
		return false
	}
	return info.ExpiresAt.Before(now)
}
