package idempotency

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return New(client, time.Minute), mr
}

func TestBeginCompleteReplay(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	resp, err := g.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = g.Begin(ctx, "k1")
	assert.ErrorIs(t, err, ErrInFlight)

	body := json.RawMessage(`{"id":"1","status":"SUCCESS"}`)
	require.NoError(t, g.Complete(ctx, "k1", Response{Status: 200, Body: body}))

	replay, err := g.Begin(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 200, replay.Status)
	assert.JSONEq(t, string(body), string(replay.Body))
}

func TestReleaseAllowsRetry(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := g.Begin(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx, "k1"))

	resp, err := g.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestKeysExpire(t *testing.T) {
	g, mr := newTestGuard(t)
	ctx := context.Background()

	_, err := g.Begin(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, g.Complete(ctx, "k1", Response{Status: 422, Body: json.RawMessage(`{}`)}))
	assert.True(t, mr.Exists(keyPrefix+"k1"))

	mr.FastForward(2 * time.Minute)

	resp, err := g.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	g, err := Connect(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer g.Close()

	_, err = Connect(context.Background(), "://bad", time.Minute)
	assert.Error(t, err)
}

func TestRedisErrorsSurface(t *testing.T) {
	g, mr := newTestGuard(t)
	mr.Close()

	_, err := g.Begin(context.Background(), "k1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInFlight)
}
