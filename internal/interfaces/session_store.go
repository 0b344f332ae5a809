package interfaces

import "context"

// SessionStore defines the contract for per-session one-shot flags
type SessionStore interface {
	// SetSkipStatusCheck marks the session so its next status re-check
	// skips the gateway poll.
	SetSkipStatusCheck(ctx context.Context, sessionID string) error

	// ConsumeSkipStatusCheck reports whether the flag was set and clears
	// it in the same operation.
	ConsumeSkipStatusCheck(ctx context.Context, sessionID string) (bool, error)
}
