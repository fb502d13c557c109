// Package phone turns user-typed phone numbers into canonical E.164 strings.
package phone

import (
	"regexp"
	"strings"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
)

var (
	countryCodeRe = regexp.MustCompile(`^\+[1-9]\d{0,3}$`)
	e164Re        = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	queryRe       = regexp.MustCompile(`^[\d+\s\-()]+$`)
)

// Nigerian country code assumed for local numbers typed into search.
const defaultSearchCountry = "234"

// Digits drops every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsE164 reports whether s is a valid E.164 number.
func IsE164(s string) bool { return e164Re.MatchString(s) }

// Normalize builds an E.164 number from a country code like "+234" and a local
// number that may carry punctuation and a trunk zero.
func Normalize(countryCode, raw string) (string, error) {
	countryCode = strings.TrimSpace(countryCode)
	if !countryCodeRe.MatchString(countryCode) {
		return "", errs.ErrInvalidPhoneFormat
	}
	digits := Digits(raw)
	if len(digits) < 4 || len(digits) > 14 {
		return "", errs.ErrInvalidPhoneFormat
	}
	full := countryCode + strings.TrimPrefix(digits, "0")
	if !IsE164(full) {
		return "", errs.ErrInvalidPhoneFormat
	}
	return full, nil
}

// LooksLikePhone reports whether a search query is made of phone characters only.
func LooksLikePhone(q string) bool { return queryRe.MatchString(q) }

// NormalizeQuery maps a phone-looking search query to E.164. Local numbers
// (leading zero, at least ten digits) are assumed Nigerian. This is a heuristic,
// not a general parser.
func NormalizeQuery(q string) string {
	digits := Digits(q)
	switch {
	case strings.HasPrefix(digits, "0") && len(digits) >= 10:
		return "+" + defaultSearchCountry + strings.TrimPrefix(digits, "0")
	default:
		// covers "234..." and anything already international
		return "+" + digits
	}
}
