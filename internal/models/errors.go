package models

import "errors"

// Domain failure classes. The HTTP layer maps these to status codes with
// errors.Is; everything below them is wrapped context.
var (
	// ErrInvalidInput marks missing or malformed required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks an unknown solution id.
	ErrNotFound = errors.New("solution not found")
	// ErrReplayDetected marks a tx_hash that has already been consumed
	// anywhere in the store.
	ErrReplayDetected = errors.New("tx_hash already used")
	// ErrStorage marks a persistence medium failure. Reported, never
	// retried.
	ErrStorage = errors.New("storage failure")
)
