// Package idempotency deduplicates client retries of write requests by their
// Idempotency-Key, using Redis as the shared reservation table.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "ledger:idempotency:"
	pendingMarker = "pending"
)

// ErrInFlight is returned when another request holding the same key has not
// finished yet.
var ErrInFlight = errors.New("idempotency key is in flight")

// Response is the stored outcome replayed for a repeated key.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Guard reserves keys with SETNX and stores completed responses for ttl.
type Guard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New creates a Guard on an existing client.
func New(client redis.UniversalClient, ttl time.Duration) *Guard {
	return &Guard{client: client, ttl: ttl}
}

// Connect parses a redis:// URL, checks the server and returns a Guard that
// owns the client.
func Connect(ctx context.Context, url string, ttl time.Duration) (*Guard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, ttl), nil
}

// Close closes the client.
func (g *Guard) Close() error {
	return g.client.Close()
}

// Begin reserves key. It returns (nil, nil) when the caller now owns the key
// and must call Complete or Release, the stored Response when the key was
// already completed, and ErrInFlight when another request holds it.
func (g *Guard) Begin(ctx context.Context, key string) (*Response, error) {
	k := keyPrefix + key

	// A completed entry can expire between SETNX and GET; one more round
	// settles it.
	for attempt := 0; attempt < 2; attempt++ {
		reserved, err := g.client.SetNX(ctx, k, pendingMarker, g.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if reserved {
			return nil, nil
		}

		val, err := g.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}
		if string(val) == pendingMarker {
			return nil, ErrInFlight
		}

		var resp Response
		if err := json.Unmarshal(val, &resp); err != nil {
			return nil, fmt.Errorf("corrupt idempotency record for %s: %w", key, err)
		}
		return &resp, nil
	}
	return nil, ErrInFlight
}

// Complete stores the final response for key.
func (g *Guard) Complete(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if err := g.client.Set(ctx, keyPrefix+key, data, g.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Release drops a reservation so the key can be retried.
func (g *Guard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
