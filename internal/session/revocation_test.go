package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeKV) Set(ctx context.Context, key string, _ interface{}, exp time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.keys[key] = exp
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeKV) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedisRevoker(t *testing.T) {
	kv := &fakeKV{keys: map[string]time.Duration{}}
	r := &RedisRevoker{client: kv}
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "abc", time.Minute))
	assert.Equal(t, time.Minute, kv.keys["k3rs:revoked:abc"])

	revoked, err := r.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "expired", 0))
	assert.NotContains(t, kv.keys, "k3rs:revoked:expired")

	assert.Error(t, r.Revoke(ctx, "", time.Minute))
}

func TestRedisRevoker_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	r := &RedisRevoker{client: &fakeKV{keys: map[string]time.Duration{}, err: boom}}

	assert.ErrorIs(t, r.Revoke(context.Background(), "abc", time.Minute), boom)
	_, err := r.IsRevoked(context.Background(), "abc")
	assert.ErrorIs(t, err, boom)
}

func TestMemoryRevoker_Expires(t *testing.T) {
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)
	m := NewMemoryRevoker()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Revoke(ctx, "abc", time.Minute))
	revoked, _ := m.IsRevoked(ctx, "abc")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = m.IsRevoked(ctx, "abc")
	assert.False(t, revoked)
}
