// Package apperr defines the sentinel errors shared across services and
// handlers. Callers classify failures with errors.Is and map them to
// transport-level responses in one place.
package apperr

import "errors"

var (
	// ErrValidation marks malformed or missing request fields. Surfaced
	// immediately, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced conversation, message, or user that
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks an access attempt on a resource the caller
	// does not own.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransport marks a network or model-provider failure during a
	// turn. The turn moves to its errored state and nothing is committed.
	ErrTransport = errors.New("model transport failure")

	// ErrDecode marks a fatal stream decoding failure. Single malformed
	// records are skipped and never produce this error.
	ErrDecode = errors.New("stream decode failure")

	// ErrBudgetOverflow is a soft condition: the single remaining message
	// still exceeds the context budget. Callers proceed anyway.
	ErrBudgetOverflow = errors.New("history exceeds context budget")

	// ErrTurnInFlight rejects a second submit while a turn is streaming
	// for the same conversation.
	ErrTurnInFlight = errors.New("another turn is in flight for this conversation")

	// ErrTurnCancelled marks a turn aborted by the caller or by the turn
	// timeout before commit.
	ErrTurnCancelled = errors.New("turn cancelled")
)
