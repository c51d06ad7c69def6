package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Callers classify
// failures with errors.Is; the API layer maps them to status codes.

var (
	// ErrNoActiveRules means no rule version covers the requested instant.
	// This is a configuration gap — fatal to the operation, never a
	// zero-rate default.
	ErrNoActiveRules = errors.New("no active rule version for timestamp")

	// ErrInsufficientPoints rejects a redemption the balance cannot cover
	// or that falls below the program minimum.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrInvalidAdjustment rejects a manual adjustment that would drive
	// the balance negative or whose sign contradicts its type.
	ErrInvalidAdjustment = errors.New("invalid adjustment")

	// ErrInvalidInput rejects malformed input ranges before any lookup.
	ErrInvalidInput = errors.New("invalid input")

	// Lookup errors
	ErrAccountNotFound = errors.New("loyalty account not found")
	ErrTierNotFound    = errors.New("tier not found")
	ErrRulesNotFound   = errors.New("rule version not found")
)

// ErrValidation wraps a range/shape violation message in ErrInvalidInput.
func ErrValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
