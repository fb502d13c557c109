// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Validation: malformed input.
var (
	// ErrValidation is the generic field-level validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidPhoneFormat indicates the normalized phone is not E.164.
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	// ErrCodeExpired indicates the OTP expiry passed before verification.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrCodeMismatch indicates the submitted OTP differs from the stored one.
	ErrCodeMismatch = errors.New("invalid verification code")
	// ErrNoCodeIssued indicates there is no OTP on record.
	ErrNoCodeIssued = errors.New("no verification code issued")
)

// Not found.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Preconditions: step-order violations.
var (
	ErrEmailNotVerified       = errors.New("email not verified")
	ErrProfileStepRequired    = errors.New("profile step required")
	ErrRegistrationIncomplete = errors.New("registration incomplete")
	ErrChatDeleted            = errors.New("chat deleted")
	ErrNotAParticipant        = errors.New("not a participant")
)

// Conflicts.
var (
	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
	ErrEmailTaken    = fmt.Errorf("email: %w", ErrAlreadyExists)
	ErrUsernameTaken = fmt.Errorf("username: %w", ErrAlreadyExists)
	ErrPhoneTaken    = fmt.Errorf("phone: %w", ErrAlreadyExists)
	ErrSelfDM        = errors.New("cannot start a chat with yourself")
)

// Rate limiting.
var (
	// ErrRateLimited is the common parent of resend throttling errors.
	ErrRateLimited         = errors.New("rate limited")
	ErrResendQuotaExceeded = fmt.Errorf("resend quota exceeded: %w", ErrRateLimited)
	ErrResendTooSoon       = fmt.Errorf("resend too soon: %w", ErrRateLimited)
)

// Auth.
var (
	// ErrUnauthorized indicates a missing, invalid or revoked credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for both unknown phone and wrong PIN.
	ErrInvalidCredentials = fmt.Errorf("invalid phone or pin: %w", ErrUnauthorized)
)

// Idempotent outcomes and delivery.
var (
	// ErrAlreadyVerified is returned by verification when the email was verified before.
	// Callers treat it as success.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrDeliveryFailed indicates the mail collaborator could not send.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// CooldownError reports how long a caller must wait before resending.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend too soon, retry after %s", e.RetryAfter)
}

// Unwrap lets errors.Is match ErrResendTooSoon and ErrRateLimited.
func (e *CooldownError) Unwrap() error { return ErrResendTooSoon }

// RetryAfterSeconds rounds the remaining cooldown up to whole seconds.
func (e *CooldownError) RetryAfterSeconds() int {
	s := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		s++
	}
	return s
}

// IncompleteError carries the onboarding step of a client that tried to log in early.
type IncompleteError struct {
	Step int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("registration incomplete at step %d", e.Step)
}

// Unwrap lets errors.Is match ErrRegistrationIncomplete.
func (e *IncompleteError) Unwrap() error { return ErrRegistrationIncomplete }

// Validationf builds a validation error with a field-level message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Kind names the taxonomy group of err, used as a metrics and log label.
func Kind(err error) string {
	var (
		cd *CooldownError
		ie *IncompleteError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidPhoneFormat),
		errors.Is(err, ErrCodeExpired), errors.Is(err, ErrCodeMismatch), errors.Is(err, ErrNoCodeIssued):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &ie), errors.Is(err, ErrEmailNotVerified), errors.Is(err, ErrProfileStepRequired),
		errors.Is(err, ErrRegistrationIncomplete), errors.Is(err, ErrChatDeleted), errors.Is(err, ErrNotAParticipant):
		return "precondition"
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrSelfDM):
		return "conflict"
	case errors.As(err, &cd), errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, ErrUnauthorized):
		return "auth"
	case errors.Is(err, ErrAlreadyVerified):
		return "idempotent"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery"
	default:
		return "server"
	}
}
