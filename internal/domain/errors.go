package domain

import "errors"

// Error taxonomy of the transfer handoff flow. Callers match with errors.Is.
var (
	ErrBridgeUnavailable       = errors.New("wallet bridge unavailable")
	ErrInvalidPayload          = errors.New("unrecognized payment code")
	ErrInvalidAddress          = errors.New("invalid wallet address")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrNoDraftPresent          = errors.New("no draft transfer present")
	ErrTransferAlreadyInFlight = errors.New("transfer already in flight")
	ErrTransferFailed          = errors.New("transfer failed")
	ErrInvalidTransition       = errors.New("invalid transfer state transition")
)
