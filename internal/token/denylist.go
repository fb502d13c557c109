package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "alebaz:revoked"

// Denylist remembers revoked token ids until the token would expire anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist stores revoked ids as expiring keys.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

var _ Denylist = (*RedisDenylist)(nil)

// NewRedisDenylist wires a Redis client; an empty prefix falls back to the default.
func NewRedisDenylist(client *redis.Client, prefix string) *RedisDenylist {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisDenylist{client: client, prefix: prefix}
}

// Revoke marks jti revoked for ttl, the time left until exp, plus Leeway
// because Parse keeps accepting the token that long past exp. Once that
// window has closed there is nothing to revoke.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	key, err := d.key(jti)
	if err != nil {
		return err
	}
	ttl += Leeway
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked jti: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked.
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	key, err := d.key(jti)
	if err != nil {
		return false, err
	}
	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked jti: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDenylist) key(jti string) (string, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return "", errors.New("jti must not be empty")
	}
	return d.prefix + ":" + jti, nil
}

// NopDenylist never revokes; used when no Redis is configured.
type NopDenylist struct{}

var _ Denylist = NopDenylist{}

func (NopDenylist) Revoke(context.Context, string, time.Duration) error { return nil }
func (NopDenylist) IsRevoked(context.Context, string) (bool, error)     { return false, nil }
