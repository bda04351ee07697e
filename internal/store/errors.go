package store

import "errors"

var (
	// ErrNotFound means a referenced row does not exist. Callers treat this
	// as a hard failure, never a silent no-op.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved means a ledger entry was not in the pending state
	// when a terminal transition was attempted.
	ErrAlreadyResolved = errors.New("ledger entry already resolved")

	// ErrConflict means an optimistic-concurrency check failed; the caller
	// may re-read and retry.
	ErrConflict = errors.New("concurrent update conflict")
)
