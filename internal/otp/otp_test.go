package otp

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

var t0 = time.Date(2026, 2, 18, 19, 0, 0, 0, time.UTC)

func newClient() *model.Client {
	return &model.Client{Email: "a@x.com", OnboardingStep: model.StepEmailPending}
}

func TestGenerateCode_ZeroPadded(t *testing.T) {
	t.Parallel()

	e := New(Policy{}).WithRand(bytes.NewReader(make([]byte, 64)))
	code, err := e.GenerateCode()
	require.NoError(t, err)
	require.Equal(t, "000000", code)
}

func TestGenerateCode_FullRange(t *testing.T) {
	t.Parallel()

	e := New(Policy{})
	leadingZero := false
	for i := 0; i < 2000; i++ {
		code, err := e.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "non-digit in %q", code)
		}
		if code[0] == '0' {
			leadingZero = true
		}
	}
	assert.True(t, leadingZero, "codes with a leading zero must be possible")
}

func TestGenerateCode_RandError(t *testing.T) {
	t.Parallel()

	e := New(Policy{}).WithRand(bytes.NewReader(nil))
	_, err := e.GenerateCode()
	require.Error(t, err)
}

func TestIssue_SetsState(t *testing.T) {
	t.Parallel()

	e := New(DefaultPolicy())
	c := newClient()
	code, err := e.Issue(c, t0)
	require.NoError(t, err)
	require.NotNil(t, c.VerificationCode)
	require.Equal(t, code, *c.VerificationCode)
	require.Equal(t, t0.Add(10*time.Minute), *c.VerificationExpiresAt)
	require.Equal(t, t0, *c.VerificationLastSentAt)
	require.Equal(t, 0, c.VerificationResends)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	e := New(DefaultPolicy())

	t.Run("no code", func(t *testing.T) {
		require.ErrorIs(t, e.Verify(newClient(), "123456", t0), errs.ErrNoCodeIssued)
	})

	t.Run("mismatch", func(t *testing.T) {
		c := newClient()
		code, _ := e.Issue(c, t0)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		require.ErrorIs(t, e.Verify(c, wrong, t0.Add(time.Minute)), errs.ErrCodeMismatch)
		require.False(t, c.Verified)
	})

	t.Run("expired even when matching", func(t *testing.T) {
		c := newClient()
		code, _ := e.Issue(c, t0)
		err := e.Verify(c, code, t0.Add(10*time.Minute+time.Nanosecond))
		require.ErrorIs(t, err, errs.ErrCodeExpired)
		require.Nil(t, c.EmailVerifiedAt)
	})

	t.Run("exactly at expiry is accepted", func(t *testing.T) {
		c := newClient()
		code, _ := e.Issue(c, t0)
		require.NoError(t, e.Verify(c, code, t0.Add(10*time.Minute)))
	})

	t.Run("success then already verified", func(t *testing.T) {
		c := newClient()
		code, _ := e.Issue(c, t0)
		now := t0.Add(2 * time.Minute)
		require.NoError(t, e.Verify(c, code, now))
		require.True(t, c.Verified)
		require.Equal(t, now, *c.EmailVerifiedAt)
		require.Equal(t, model.StepEmailVerified, c.OnboardingStep)
		require.Nil(t, c.VerificationCode)
		require.Nil(t, c.VerificationExpiresAt)

		require.ErrorIs(t, e.Verify(c, code, now), errs.ErrAlreadyVerified)
	})
}

func TestResend_Cooldown(t *testing.T) {
	t.Parallel()

	e := New(DefaultPolicy())
	c := newClient()
	_, _ = e.Issue(c, t0)

	_, err := e.Resend(c, t0.Add(3*time.Second))
	var cd *errs.CooldownError
	require.True(t, errors.As(err, &cd))
	require.ErrorIs(t, err, errs.ErrResendTooSoon)
	require.ErrorIs(t, err, errs.ErrRateLimited)
	require.Equal(t, 7*time.Second, cd.RetryAfter)
	require.Equal(t, 7, cd.RetryAfterSeconds())
	require.Equal(t, 0, c.VerificationResends)

	code, err := e.Resend(c, t0.Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, c.VerificationResends)
	require.Equal(t, code, *c.VerificationCode)
	require.Equal(t, t0.Add(10*time.Second+10*time.Minute), *c.VerificationExpiresAt)
}

func TestResend_QuotaBeatsElapsedTime(t *testing.T) {
	t.Parallel()

	e := New(DefaultPolicy())
	c := newClient()
	_, _ = e.Issue(c, t0)

	now := t0
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		_, err := e.Resend(c, now)
		require.NoError(t, err, "resend %d", i+1)
	}
	require.Equal(t, 5, c.VerificationResends)

	for _, later := range []time.Duration{time.Second, time.Hour, 24 * time.Hour} {
		_, err := e.Resend(c, now.Add(later))
		require.ErrorIs(t, err, errs.ErrResendQuotaExceeded)
		require.ErrorIs(t, err, errs.ErrRateLimited)
	}
	require.Equal(t, 5, c.VerificationResends)
}

func TestCooldownError_RoundsUp(t *testing.T) {
	t.Parallel()
	e := &errs.CooldownError{RetryAfter: 2500 * time.Millisecond}
	require.Equal(t, 3, e.RetryAfterSeconds())
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	require.Equal(t, DefaultPolicy(), New(Policy{}).Policy())
	p := Policy{TTL: time.Minute, Cooldown: time.Second, MaxResends: 2}
	require.Equal(t, p, New(p).Policy())
}
