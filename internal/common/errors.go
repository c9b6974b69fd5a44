// Package common defines shared constants and sentinel errors used across
// the devlog pipeline and server layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Workflow errors. ErrBusy is returned when a second upload or synthesis
	// is requested while one is already in flight; the caller is expected to
	// disable the trigger, not queue the request.
	ErrBusy           = errors.New("workflow already in progress")
	ErrCancelled      = errors.New("workflow cancelled")
	ErrNoStagedAssets = errors.New("no staged assets")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
