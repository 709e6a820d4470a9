// Package redis backs the fixed-window rate-limit counters and the
// readiness probe.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

const (
	keyNamespace    = "sh"
	rateLimitPrefix = "rate_limit"
)

var errNotInitialized = errors.New("redis client not initialized")

// counters is the slice of redis the client relies on.
type counters interface {
	Ping(ctx context.Context) error
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Close() error
}

type Client struct {
	backend counters
}

func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	backend := goRedis{redis.NewClient(opts)}
	if err := backend.Ping(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis connection established")
	}
	return &Client{backend: backend}, nil
}

// optionsFromConfig parses the URL; explicit settings fill in whatever the
// URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	fill(&opts.Password, cfg.Password)
	fill(&opts.DB, cfg.DB)
	fill(&opts.PoolSize, cfg.PoolSize)
	fill(&opts.MinIdleConns, cfg.MinIdleConns)
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fill[T comparable](dst *T, fallback T) {
	var zero T
	if *dst == zero {
		*dst = fallback
	}
}

// IncrWithTTL counts one hit in the window stored at key. The window's TTL
// is set by the hit that opens it and never extended by later ones.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c == nil || c.backend == nil {
		return 0, errNotInitialized
	}
	return c.backend.IncrWindow(ctx, key, ttl)
}

// TTL returns the remaining lifetime of key, or zero when it has none.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	if c == nil || c.backend == nil {
		return 0, errNotInitialized
	}
	ttl, err := c.backend.TTL(ctx, key)
	if err != nil {
		return 0, err
	}
	return max(ttl, 0), nil
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.backend == nil {
		return errNotInitialized
	}
	return c.backend.Ping(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}

type goRedis struct {
	rdb *redis.Client
}

func (g goRedis) Ping(ctx context.Context) error { return g.rdb.Ping(ctx).Err() }

func (g goRedis) Close() error { return g.rdb.Close() }

func (g goRedis) TTL(ctx context.Context, key string) (time.Duration, error) {
	return g.rdb.TTL(ctx, key).Result()
}

// IncrWindow runs INCR and EXPIRE NX in one MULTI so a crash between the two
// can never leave a counter without a TTL. EXPIRE NX needs Redis 7.
func (g goRedis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if window > 0 {
			pipe.ExpireNX(ctx, key, window)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
