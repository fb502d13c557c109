// Package crypto implements server-side PIN hashing and verification.
package crypto

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// PINLength is the number of digits in a login PIN.
const PINLength = 6

var pinRe = regexp.MustCompile(`^\d{6}$`)

// ErrBadPIN is returned when a PIN is not exactly six digits.
var ErrBadPIN = errors.New("pin must be 6 digits")

// Hasher hashes and verifies PINs. Cost is the bcrypt work factor.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher using bcrypt.DefaultCost when cost is out of range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost}
}

// ValidPIN reports whether pin is exactly six ASCII digits.
func ValidPIN(pin string) bool { return pinRe.MatchString(pin) }

// HashPIN returns the bcrypt hash of a six-digit PIN.
func (h *Hasher) HashPIN(pin string) ([]byte, error) {
	if !ValidPIN(pin) {
		return nil, ErrBadPIN
	}
	return bcrypt.GenerateFromPassword([]byte(pin), h.Cost)
}

// VerifyPIN reports whether pin matches the stored hash.
func (h *Hasher) VerifyPIN(hash []byte, pin string) bool {
	if len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(pin)) == nil
}
