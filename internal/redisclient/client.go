package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/release_pending.lua
var releasePendingScript string

// pendingMarker is stored under an idempotency key while its request is running
const pendingMarker = "pending"

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return New(rdb), nil
}

// New wraps an existing connection
func New(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releasePendingScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, key)
}

// Claim is the outcome of claiming an idempotency key
type Claim struct {
	// Acquired is true when the caller now owns the key and must run the request
	Acquired bool
	// InFlight is true when another request holds the key and has not finished
	InFlight bool
	// ResultID is the id recorded by the request that completed under the key
	ResultID int64
}

// ClaimIdempotencyKey marks key as pending unless it is already held. The
// scope keeps keys of different users apart.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (Claim, error) {
	k := idempotencyKey(scope, key)

	ok, err := c.rdb.SetNX(ctx, k, pendingMarker, ttl).Result()
	if err != nil {
		return Claim{}, fmt.Errorf("claim idempotency key failed: %w", err)
	}
	if ok {
		return Claim{Acquired: true}, nil
	}

	val, err := c.rdb.Get(ctx, k).Result()
	if err == redis.Nil {
		// expired or released between SETNX and GET; let the caller retry
		return Claim{InFlight: true}, nil
	}
	if err != nil {
		return Claim{}, fmt.Errorf("read idempotency key failed: %w", err)
	}
	if val == pendingMarker {
		return Claim{InFlight: true}, nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return Claim{}, fmt.Errorf("corrupt idempotency value %q: %w", val, err)
	}
	return Claim{ResultID: id}, nil
}

// CompleteIdempotencyKey binds key to the id of the result it produced
func (c *Client) CompleteIdempotencyKey(ctx context.Context, scope, key string, resultID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(scope, key), resultID, ttl).Err()
}

// ReleaseIdempotencyKey frees a key whose request failed. A key that already
// carries a result is left untouched.
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, scope, key string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{idempotencyKey(scope, key)}, pendingMarker).Result()
	if err != nil {
		return fmt.Errorf("release idempotency key script failed: %w", err)
	}
	return nil
}

// MarkEventSeen records an event id and reports whether it was new
func (c *Client) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("seen:%s", eventID), "1", ttl).Result()
}

// ForgetEvent removes an event id so a failed delivery can be processed again
func (c *Client) ForgetEvent(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("seen:%s", eventID)).Err()
}
