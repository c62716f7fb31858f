package types

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
)

// errors
var (
	ErrDecode           = errorsmod.Register(ModuleName, 2, "failed to decode event")
	ErrGateway          = errorsmod.Register(ModuleName, 3, "gateway call failed")
	ErrUnknownEventType = errorsmod.Register(ModuleName, 4, "unknown event type")
	ErrInvalidAddress   = errorsmod.Register(ModuleName, 5, "invalid address")
	ErrInvalidAmount    = errorsmod.Register(ModuleName, 6, "invalid amount")
	ErrInvalidNonce     = errorsmod.Register(ModuleName, 7, "invalid nonce")
	ErrAlreadyProcessed = errorsmod.Register(ModuleName, 8, "withdrawal already processed")
)

// IsPermanent reports whether err rejects the event itself. The same bytes
// fail the same way on every attempt and every node.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	return errorsmod.IsOf(err, ErrDecode, ErrUnknownEventType, ErrInvalidAddress, ErrInvalidAmount, ErrInvalidNonce)
}

// IsRetryable reports whether an actuation failure may succeed on a later attempt.
// Decode failures are permanent for the same bytes, gateway failures are not.
func IsRetryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}

	return errorsmod.IsOf(err, ErrGateway)
}

// WrapGateway annotates a collaborator failure. Validation errors keep their
// class; anything else is marked ErrGateway. The cause stays in the chain.
func WrapGateway(err error, msg string) error {
	if err == nil {
		return nil
	}

	if IsPermanent(err) || errorsmod.IsOf(err, ErrGateway) {
		return errorsmod.Wrap(err, msg)
	}

	return fmt.Errorf("%s: %w: %w", msg, ErrGateway, err)
}
