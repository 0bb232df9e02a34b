// Package common defines shared constants and sentinel errors used across
// client and server layers of CareVault. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorConflict     = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// ErrSessionExpired means the balanced-tier session passed its inactivity
	// or absolute-age limit; the caller must re-authenticate, not retry.
	ErrSessionExpired = errors.New("session expired")
)
