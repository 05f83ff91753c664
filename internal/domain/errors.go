package domain

import "errors"

// Sentinel errors for the client core. Transient conditions
// (ErrNetworkUnavailable) are retried internally; terminal conditions
// (ErrAuthFailed, ErrAuthRejected) are surfaced to the caller exactly once.
var (
	ErrAuthFailed         = errors.New("authentication failed")
	ErrAuthRejected       = errors.New("session token rejected")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrStorageUnavailable = errors.New("local storage unavailable")
	ErrSendFailed         = errors.New("message send failed")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
)
