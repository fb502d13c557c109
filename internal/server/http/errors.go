package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
)

const errorKindKey = "error_kind"

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// errorCases is checked in order; more specific sentinels come first.
var errorCases = []ErrorCase{
	{Err: errs.ErrEmailTaken, Status: http.StatusUnprocessableEntity, Message: "The email has already been taken."},
	{Err: errs.ErrUsernameTaken, Status: http.StatusUnprocessableEntity, Message: "The username has already been taken."},
	{Err: errs.ErrPhoneTaken, Status: http.StatusUnprocessableEntity, Message: "Phone already registered."},
	{Err: errs.ErrInvalidPhoneFormat, Status: http.StatusUnprocessableEntity, Message: "Invalid phone number format."},
	{Err: errs.ErrCodeExpired, Status: http.StatusUnprocessableEntity, Message: "Verification code has expired. Please resend a new code."},
	{Err: errs.ErrCodeMismatch, Status: http.StatusUnprocessableEntity, Message: "Invalid verification code."},
	{Err: errs.ErrNoCodeIssued, Status: http.StatusBadRequest, Message: "No verification code found. Please request a new code."},
	{Err: errs.ErrResendQuotaExceeded, Status: http.StatusTooManyRequests, Message: "Too many resend attempts. Please try again later."},
	{Err: errs.ErrResendTooSoon, Status: http.StatusTooManyRequests, Message: "Please wait a moment before resending the code."},
	{Err: errs.ErrDeliveryFailed, Status: http.StatusInternalServerError, Message: "Failed to send verification email. Please try again."},
	{Err: errs.ErrEmailNotVerified, Status: http.StatusForbidden, Message: "Verify email first"},
	{Err: errs.ErrProfileStepRequired, Status: http.StatusForbidden, Message: "Complete profile step first"},
	{Err: errs.ErrRegistrationIncomplete, Status: http.StatusForbidden, Message: "Complete registration first."},
	{Err: errs.ErrInvalidCredentials, Status: http.StatusUnprocessableEntity, Message: "Invalid phone or PIN."},
	{Err: errs.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "Unauthenticated"},
	{Err: errs.ErrSelfDM, Status: http.StatusUnprocessableEntity, Message: "You cannot start a chat with yourself."},
	{Err: errs.ErrNotAParticipant, Status: http.StatusForbidden, Message: "Not a participant"},
	{Err: errs.ErrChatDeleted, Status: http.StatusNotFound, Message: "Chat deleted"},
	{Err: errs.ErrNotFound, Status: http.StatusNotFound, Message: "Not found"},
}

// errorBody is the JSON shape of every failure.
type errorBody struct {
	OK                bool     `json:"ok"`
	Message           string   `json:"message"`
	Errors            []string `json:"errors,omitempty"`
	RetryAfterSeconds *int     `json:"retry_after_seconds,omitempty"`
	OnboardingStep    *int     `json:"onboarding_step,omitempty"`
}

// fail writes the mapped response for err. Route-specific cases in overrides
// win over the shared table. Unknown errors become a logged 500.
func (s *Server) fail(c *gin.Context, err error, overrides ...ErrorCase) {
	kind := errs.Kind(err)
	c.Set(errorKindKey, kind)
	_ = c.Error(err)

	status, body := mapError(err, overrides)
	if status >= http.StatusInternalServerError {
		s.d.Log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func mapError(err error, overrides []ErrorCase) (int, errorBody) {
	body := errorBody{}

	var cd *errs.CooldownError
	if errors.As(err, &cd) {
		secs := cd.RetryAfterSeconds()
		body.RetryAfterSeconds = &secs
	}
	var ie *errs.IncompleteError
	if errors.As(err, &ie) {
		step := ie.Step
		body.OnboardingStep = &step
	}

	if errors.Is(err, errs.ErrValidation) {
		body.Message = strings.TrimPrefix(err.Error(), errs.ErrValidation.Error()+": ")
		return http.StatusUnprocessableEntity, body
	}
	for _, cases := range [][]ErrorCase{overrides, errorCases} {
		for _, cs := range cases {
			if cs.Err != nil && errors.Is(err, cs.Err) {
				body.Message = cs.Message
				return cs.Status, body
			}
		}
	}
	body.Message = "Server error"
	return http.StatusInternalServerError, body
}
