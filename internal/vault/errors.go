package vault

import "errors"

var (
	// ErrLockAlreadyActive is returned when lock is entered while a session
	// is open. The vault admits one session at a time.
	ErrLockAlreadyActive = errors.New("lock already active")

	// ErrNoActiveLock is returned when a session-scoped operation is called
	// outside a lock session.
	ErrNoActiveLock = errors.New("no active lock session")

	// ErrAppNotRegistered is returned when an unregistered address posts a
	// balance delta.
	ErrAppNotRegistered = errors.New("app not registered")

	// ErrNotSynced is returned by settle when no sync checkpoint exists for
	// the session. Settling without a prior sync is an error, not a no-op.
	ErrNotSynced = errors.New("settle without sync")

	// ErrInsufficientCredit is returned by take when the caller's ledger
	// entry does not cover the requested amount.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrDeltaOverflow is returned when ledger accumulation leaves the
	// signed 128-bit range.
	ErrDeltaOverflow = errors.New("delta overflow")

	// ErrNotOwner is returned when a non-owner calls an administrative
	// operation.
	ErrNotOwner = errors.New("caller is not the vault owner")
)
