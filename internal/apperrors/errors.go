// Package apperrors defines the error taxonomy shared by services and
// handlers. Services return these sentinels (usually wrapped); handlers map
// them onto HTTP statuses.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNotVerified         = errors.New("user not verified")
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired OTP")
	ErrInvalidOTPContext   = errors.New("invalid OTP context for this account")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrAlreadySubscribed   = errors.New("user already subscribed")
	ErrNoBillingCustomer   = errors.New("user has no billing customer")
	ErrTransactionAborted  = errors.New("transaction aborted")
)

// ValidationError reports a malformed input with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GatewayError wraps a failure from an external collaborator (billing
// gateway or mail transport).
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
