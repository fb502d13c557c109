// Package token issues and verifies HS256 bearer credentials and tracks
// revoked token ids.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// Leeway tolerated on exp/nbf/iat checks.
const Leeway = 30 * time.Second

// Issuer signs and parses access tokens bound to a client id.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer constructs an Issuer. now may be nil.
func NewIssuer(key []byte, ttl time.Duration, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{key: key, ttl: ttl, now: now}
}

// Issue creates a signed HS256 JWT with sub=clientID and a fresh jti.
func (i *Issuer) Issue(clientID uuid.UUID) (model.Tokens, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   clientID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Tokens{AccessToken: signed, TokenID: jti.String(), ExpiresAt: exp}, nil
}

// Parse verifies tok and returns the principal it carries.
// Every failure wraps errs.ErrUnauthorized.
func (i *Issuer) Parse(tok string) (model.Principal, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithLeeway(Leeway), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return model.Principal{}, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return model.Principal{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	if claims.ID == "" {
		return model.Principal{}, fmt.Errorf("%w: missing jti", errs.ErrUnauthorized)
	}
	return model.Principal{ClientID: id, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// FromHeader extracts the credential from an "Authorization: Bearer <jwt>" value.
func FromHeader(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: no bearer token", errs.ErrUnauthorized)
}
