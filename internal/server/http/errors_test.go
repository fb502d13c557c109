package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{name: "validation", err: errs.Validationf("pin must be %d digits", 6), status: http.StatusUnprocessableEntity, msg: "pin must be 6 digits"},
		{name: "email taken", err: errs.ErrEmailTaken, status: http.StatusUnprocessableEntity, msg: "The email has already been taken."},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", errs.ErrNotFound), status: http.StatusNotFound, msg: "Not found"},
		{name: "no code", err: errs.ErrNoCodeIssued, status: http.StatusBadRequest},
		{name: "quota", err: errs.ErrResendQuotaExceeded, status: http.StatusTooManyRequests},
		{name: "credentials", err: errs.ErrInvalidCredentials, status: http.StatusUnprocessableEntity, msg: "Invalid phone or PIN."},
		{name: "unauthorized", err: errs.ErrUnauthorized, status: http.StatusUnauthorized},
		{name: "chat deleted", err: errs.ErrChatDeleted, status: http.StatusNotFound, msg: "Chat deleted"},
		{name: "outsider", err: errs.ErrNotAParticipant, status: http.StatusForbidden},
		{name: "delivery", err: fmt.Errorf("%w: dial", errs.ErrDeliveryFailed), status: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("pg down"), status: http.StatusInternalServerError, msg: "Server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := mapError(tc.err, nil)
			require.Equal(t, tc.status, status)
			require.False(t, body.OK)
			if tc.msg != "" {
				require.Equal(t, tc.msg, body.Message)
			}
		})
	}
}

func TestMapError_Extras(t *testing.T) {
	t.Parallel()

	status, body := mapError(&errs.CooldownError{RetryAfter: 6500 * time.Millisecond}, nil)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, 7, *body.RetryAfterSeconds)
	require.Nil(t, body.OnboardingStep)

	status, body = mapError(&errs.IncompleteError{Step: 3}, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, 3, *body.OnboardingStep)
	require.Equal(t, "Complete registration first.", body.Message)
}

func TestMapError_OverridesWin(t *testing.T) {
	t.Parallel()

	status, body := mapError(errs.ErrNotFound, []ErrorCase{
		{Err: errs.ErrNotFound, Status: http.StatusNotFound, Message: "Email not found. Please register again."},
	})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Email not found. Please register again.", body.Message)
}
