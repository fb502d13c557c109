// Package service contains the onboarding, search, conversation and
// messaging application services.
package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/LyndaLilly/alebaz-chat-api/internal/events"
	"github.com/LyndaLilly/alebaz-chat-api/internal/model"
)

// PublishTimeout bounds how long a request waits on the event publisher.
const PublishTimeout = 2 * time.Second

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is UTC wall time truncated to the storage precision.
func SystemClock() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// publishBestEffort emits e within timeout. Failures are logged, never returned.
func publishBestEffort(ctx context.Context, pub events.Publisher, timeout time.Duration, log *zap.Logger, e events.Event, fields ...zap.Field) {
	if timeout <= 0 {
		timeout = PublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pub.Publish(ctx, e); err != nil {
		log.Warn("publish "+e.Type, append(fields, zap.Error(err))...)
	}
}

// PinHasher hashes and checks login PINs.
type PinHasher interface {
	HashPIN(pin string) ([]byte, error)
	VerifyPIN(hash []byte, pin string) bool
}

// TokenIssuer creates bearer credentials for a client.
type TokenIssuer interface {
	Issue(clientID uuid.UUID) (model.Tokens, error)
}
