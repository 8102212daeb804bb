package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Options configures the Redis connection and the namespace every key is written under.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Client is a namespaced Redis client that degrades to a miss when Redis cannot be reached.
// Idempotent replay and token revocation both tolerate that: the worst case is a re-evaluated
// request or a revoked token that stays usable until it expires.
type Client struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// New connects lazily; the first command dials.
func New(opts Options, logger zerolog.Logger) *Client {
	return NewFromRedis(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), opts.Prefix, logger)
}

// NewFromRedis wraps an existing redis client.
func NewFromRedis(client *redis.Client, prefix string, logger zerolog.Logger) *Client {
	return &Client{client: client, prefix: prefix, logger: logger}
}

func (c *Client) key(k string) string { return c.prefix + k }

func (c *Client) degraded(op, key string, err error) {
	c.logger.Warn().Err(err).
		Str("event", "cache_degraded").
		Str("op", op).
		Str("key", key).
		Msg("redis unavailable, continuing without cache")
}

// Get returns nil for a missing key or an unreachable Redis.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		c.degraded("get", key, err)
		return nil, nil
	}
	return res, nil
}

// Set stores value for ttl. A write that fails is logged and dropped.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		c.degraded("set", key, err)
	}
	return nil
}

// SetNX stores value only if key is absent and reports whether it was stored.
// When Redis is unavailable it reports true so callers proceed as if they hold the key.
func (c *Client) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if c == nil || c.client == nil {
		return true, nil
	}
	ok, err := c.client.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		c.degraded("setnx", key, err)
		return true, nil
	}
	return ok, nil
}

// Delete removes key; a failure leaves it to expire on its own TTL.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.degraded("del", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
