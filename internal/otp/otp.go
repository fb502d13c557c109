// Package otp implements the email one-time-code lifecycle: issue, verify and
// throttled resend. It only mutates the OTP sub-state of a model.Client;
// persistence and delivery belong to the caller.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// CodeLength is the number of digits in a code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// Policy holds the timing and quota limits.
type Policy struct {
	TTL        time.Duration // code lifetime
	Cooldown   time.Duration // minimum gap between sends
	MaxResends int           // resend quota per client
}

// DefaultPolicy is 10 minutes validity, 10 seconds cooldown, 5 resends.
func DefaultPolicy() Policy {
	return Policy{TTL: 10 * time.Minute, Cooldown: 10 * time.Second, MaxResends: 5}
}

// Engine applies a Policy. The random source is swappable for tests.
type Engine struct {
	policy Policy
	rand   io.Reader
}

// New constructs an Engine; zero fields in p fall back to DefaultPolicy.
func New(p Policy) *Engine {
	def := DefaultPolicy()
	if p.TTL <= 0 {
		p.TTL = def.TTL
	}
	if p.Cooldown <= 0 {
		p.Cooldown = def.Cooldown
	}
	if p.MaxResends <= 0 {
		p.MaxResends = def.MaxResends
	}
	return &Engine{policy: p, rand: rand.Reader}
}

// WithRand overrides the random source, used in tests.
func (e *Engine) WithRand(r io.Reader) *Engine {
	if r != nil {
		e.rand = r
	}
	return e
}

// Policy returns the effective policy.
func (e *Engine) Policy() Policy { return e.policy }

// GenerateCode returns a uniformly random code in 000000..999999, zero padded.
func (e *Engine) GenerateCode() (string, error) {
	n, err := rand.Int(e.rand, codeSpace)
	if err != nil {
		return "", fmt.Errorf("otp: generate: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// Issue generates a fresh code and stores it on c together with its expiry.
func (e *Engine) Issue(c *model.Client, now time.Time) (string, error) {
	code, err := e.GenerateCode()
	if err != nil {
		return "", err
	}
	exp := now.Add(e.policy.TTL)
	sent := now
	c.VerificationCode = &code
	c.VerificationExpiresAt = &exp
	c.VerificationLastSentAt = &sent
	return code, nil
}

// Verify checks submitted against the code on c and, on success, marks the
// email verified and moves the client to step 2.
func (e *Engine) Verify(c *model.Client, submitted string, now time.Time) error {
	if c.EmailVerifiedAt != nil {
		return errs.ErrAlreadyVerified
	}
	if c.VerificationCode == nil || *c.VerificationCode == "" {
		return errs.ErrNoCodeIssued
	}
	if c.VerificationExpiresAt != nil && now.After(*c.VerificationExpiresAt) {
		return errs.ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(*c.VerificationCode), []byte(submitted)) != 1 {
		return errs.ErrCodeMismatch
	}

	verifiedAt := now
	c.Verified = true
	c.EmailVerifiedAt = &verifiedAt
	c.OnboardingStep = model.StepEmailVerified
	c.VerificationCode = nil
	c.VerificationExpiresAt = nil
	return nil
}

// CheckResend reports whether a resend is currently allowed for c.
// The quota is checked before the cooldown.
func (e *Engine) CheckResend(c *model.Client, now time.Time) error {
	if c.VerificationResends >= e.policy.MaxResends {
		return errs.ErrResendQuotaExceeded
	}
	if c.VerificationLastSentAt != nil {
		elapsed := now.Sub(*c.VerificationLastSentAt)
		if elapsed < e.policy.Cooldown {
			return &errs.CooldownError{RetryAfter: e.policy.Cooldown - elapsed}
		}
	}
	return nil
}

// Resend re-issues a code when CheckResend allows it and counts the resend.
func (e *Engine) Resend(c *model.Client, now time.Time) (string, error) {
	if err := e.CheckResend(c, now); err != nil {
		return "", err
	}
	code, err := e.Issue(c, now)
	if err != nil {
		return "", err
	}
	c.VerificationResends++
	return code, nil
}
