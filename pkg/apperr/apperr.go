// Package apperr holds the error taxonomy shared by services and the HTTP boundary.
// Services wrap these sentinels with context; handlers match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthorizationDenied    = errors.New("authorization denied")
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrQuotaExceeded          = errors.New("message quota exceeded")
	ErrDuplicateClaim         = errors.New("claim already submitted for this action")
	ErrLifetimeCapExceeded    = errors.New("lifetime reward cap exceeded")
	ErrUnverifiedEmail        = errors.New("email not verified")
	ErrPlanIneligible         = errors.New("plan not eligible for rewards")
	ErrAlreadyDecided         = errors.New("claim already decided")
	ErrMissingProof           = errors.New("proof required for this claim")
	ErrReferralLimitReached   = errors.New("referral claim limit reached")
	ErrExternalServiceTimeout = errors.New("external service timeout")
	ErrExternalService        = errors.New("external service error")
	ErrSignatureVerification  = errors.New("signature verification failed")
	ErrUnrecognizedPrice      = errors.New("unrecognized price")
	ErrEmailTaken             = errors.New("email already registered")
)

// Validation wraps ErrValidation with a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// QuotaExceededError carries the period counters at the time of rejection.
type QuotaExceededError struct {
	Used  int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: used %d of %d", ErrQuotaExceeded, e.Used, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }
