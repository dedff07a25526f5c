package router

import "errors"

var (
	// ErrInsufficientSettlement is returned when the measured amount
	// credited by settle does not cover the debt posted against the caller.
	ErrInsufficientSettlement = errors.New("settled amount does not cover debt")

	// ErrTooLittleReceived is the exact-input slippage failure.
	ErrTooLittleReceived = errors.New("too little received")

	// ErrTooMuchRequested is the exact-output slippage failure.
	ErrTooMuchRequested = errors.New("too much requested")

	// ErrUnknownOperation is returned when the lock callback receives a
	// payload it does not recognize.
	ErrUnknownOperation = errors.New("unknown lock operation")
)
