// Package common defines shared constants and sentinel errors used across
// standcheck components. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Platform logon failures reported by the gaming network. A session
	// surfaces exactly one of these as its terminal outcome; none of them
	// are retried automatically.
	ErrInvalidCredentials = errors.New("invalid password")
	ErrSessionConflict    = errors.New("logged in elsewhere")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrGuardCodeInvalid   = errors.New("guard code is invalid")
	ErrGuardCodeMissing   = errors.New("guard code missing")

	// ErrDisconnected signals an unexpected mid-session connection drop.
	ErrDisconnected = errors.New("disconnected")

	// ErrTimeout is returned when a per-state deadline is configured and a
	// session stalls without reaching a terminal state.
	ErrTimeout = errors.New("verification timed out")

	// ErrSchema signals a malformed or unrecognized coordinator payload.
	ErrSchema = errors.New("malformed coordinator payload")

	// Vault errors.
	ErrAuth    = errors.New("invalid vault password")
	ErrCorrupt = errors.New("vault file is corrupt")

	// ErrCheckInProgress is returned when a verification for the same login
	// is already running.
	ErrCheckInProgress = errors.New("check already in progress")

	// ErrNotFound is returned for lookups of unknown logins.
	ErrNotFound = errors.New("not found")
)

// UnknownPlatformError wraps a platform result code that has no dedicated
// mapping. The code is preserved so operators can look it up.
type UnknownPlatformError struct {
	Code int32
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform error: %d", e.Code)
}
