package pool

import "errors"

var (
	// ErrPoolNotInitialized is returned for operations on unknown pool ids.
	ErrPoolNotInitialized = errors.New("pool not initialized")

	// ErrPoolAlreadyInitialized is returned by a second initialize on the
	// same pool id. The stored price is left untouched.
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")

	// ErrInvalidAmount is returned for zero or wrong-signed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientPosition is returned when removing more liquidity than
	// a position holds.
	ErrInsufficientPosition = errors.New("insufficient position liquidity")

	// ErrWrongManager is returned when a pool key addresses a different
	// pool manager.
	ErrWrongManager = errors.New("pool key addresses another manager")
)
