package premium

import (
	"errors"
	"fmt"

	"github.com/xraph/premium/gate"
)

// Sentinel errors for rejected operations. Rejections are synchronous and
// leave no partial state behind.
var (
	ErrUnauthorized      = gate.ErrUnauthorized
	ErrAlreadySubscribed = errors.New("premium: already subscribed")
	ErrInvalidPolicyID   = errors.New("premium: invalid policy id")
	ErrIncorrectAmount   = errors.New("premium: incorrect premium amount")
	ErrPolicyExpired     = errors.New("premium: policy expired")
	ErrPaymentNotYetDue  = errors.New("premium: payment not yet due")
	ErrNoSubscription    = errors.New("premium: no subscription")
)

// Operational errors.
var (
	ErrInvalidInput      = errors.New("premium: invalid input")
	ErrPolicyNotFound    = errors.New("premium: policy not found")
	ErrTransferFailed    = errors.New("premium: payout transfer failed")
	ErrConcurrentUpdate  = errors.New("premium: concurrent update")
	ErrInvalidTransition = errors.New("premium: invalid status transition")
	ErrStoreNotReady     = errors.New("premium: store not ready")
	ErrStoreClosed       = errors.New("premium: store is closed")
	ErrMigrationFailed   = errors.New("premium: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("premium: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSubscription) ||
		errors.Is(err, ErrPolicyNotFound)
}

// IsRejection returns true if the error is a business-rule rejection that
// the caller may correct and resubmit.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrInvalidPolicyID) ||
		errors.Is(err, ErrIncorrectAmount) ||
		errors.Is(err, ErrPolicyExpired) ||
		errors.Is(err, ErrPaymentNotYetDue) ||
		errors.Is(err, ErrNoSubscription)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrStoreNotReady)
}
