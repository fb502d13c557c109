package token

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return client, server
}

func TestRedisDenylist_RevokeAndCheck(t *testing.T) {
	client, server := newTestRedis(t)
	d := NewRedisDenylist(client, "")
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	ttl := server.TTL(defaultPrefix + ":jti-1")
	require.Equal(t, time.Minute+Leeway, ttl)

	server.FastForward(time.Minute + Leeway + time.Second)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRedisDenylist_EdgeCases(t *testing.T) {
	client, server := newTestRedis(t)
	d := NewRedisDenylist(client, "custom")
	ctx := context.Background()

	require.Error(t, d.Revoke(ctx, "  ", time.Minute))
	_, err := d.IsRevoked(ctx, "")
	require.Error(t, err)

	require.NoError(t, d.Revoke(ctx, "expired", -Leeway))
	require.False(t, server.Exists("custom:expired"))

	require.NoError(t, d.Revoke(ctx, "j", time.Minute))
	require.True(t, server.Exists("custom:j"))
}

func TestRedisDenylist_CoversParseLeeway(t *testing.T) {
	client, server := newTestRedis(t)
	d := NewRedisDenylist(client, "")
	ctx := context.Background()

	now := time.Date(2026, 2, 18, 19, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	iss := NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Minute, clock)

	check := func(tok string) (bool, error) {
		p, err := iss.Parse(tok)
		if err != nil {
			return false, err
		}
		return d.IsRevoked(ctx, p.TokenID)
	}
	advance := func(by time.Duration) {
		now = now.Add(by)
		server.FastForward(by)
	}

	t.Run("revoked before exp stays revoked past exp", func(t *testing.T) {
		tok, err := iss.Issue(uuid.Must(uuid.NewV4()))
		require.NoError(t, err)
		require.NoError(t, d.Revoke(ctx, tok.TokenID, tok.ExpiresAt.Sub(now)))

		advance(time.Minute + 10*time.Second)
		revoked, err := check(tok.AccessToken)
		require.NoError(t, err, "still inside leeway")
		require.True(t, revoked)

		advance(Leeway)
		_, err = check(tok.AccessToken)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("revoked inside leeway", func(t *testing.T) {
		tok, err := iss.Issue(uuid.Must(uuid.NewV4()))
		require.NoError(t, err)

		advance(time.Minute + 5*time.Second)
		require.NoError(t, d.Revoke(ctx, tok.TokenID, tok.ExpiresAt.Sub(now)))

		advance(10 * time.Second)
		revoked, err := check(tok.AccessToken)
		require.NoError(t, err)
		require.True(t, revoked)
	})
}

func TestNopDenylist(t *testing.T) {
	var d Denylist = NopDenylist{}
	require.NoError(t, d.Revoke(context.Background(), "x", time.Minute))
	revoked, err := d.IsRevoked(context.Background(), "x")
	require.NoError(t, err)
	require.False(t, revoked)
}
