package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every ValidationError via errors.Is
	ErrValidation = errors.New("validation failed")

	// ErrNoOpponentsSelected is the most common validation failure and is
	// surfaced distinctly
	ErrNoOpponentsSelected = &ValidationError{Field: "opponents", Message: "select at least one opponent"}

	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("operation not permitted for this user")

	// ErrNoStake is returned by payment operations on a challenge with nothing staked
	ErrNoStake = errors.New("challenge has no stake to pay")

	// ErrChallengeCreation matches every ChallengeCreationError via errors.Is
	ErrChallengeCreation = errors.New("challenge creation failed")

	// ErrPaymentConfirmation matches every PaymentConfirmationError via errors.Is
	ErrPaymentConfirmation = errors.New("payment confirmation failed")
)

// ValidationError reports a draft that cannot be submitted
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ChallengeCreationError wraps the challenge service failure unchanged
type ChallengeCreationError struct {
	Err error
}

func (e *ChallengeCreationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrChallengeCreation, e.Err)
}

func (e *ChallengeCreationError) Unwrap() error {
	return e.Err
}

func (e *ChallengeCreationError) Is(target error) bool {
	return target == ErrChallengeCreation
}

// PaymentConfirmationError wraps a payment ledger failure. The payment state
// is unchanged and the claim may be retried.
type PaymentConfirmationError struct {
	ChallengeID string
	UserID      string
	Err         error
}

func (e *PaymentConfirmationError) Error() string {
	return fmt.Sprintf("%s for challenge %s user %s: %v", ErrPaymentConfirmation, e.ChallengeID, e.UserID, e.Err)
}

func (e *PaymentConfirmationError) Unwrap() error {
	return e.Err
}

func (e *PaymentConfirmationError) Is(target error) bool {
	return target == ErrPaymentConfirmation
}
