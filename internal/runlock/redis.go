// SPDX-License-Identifier: MIT

// Package runlock provides a Redis-backed mutual exclusion lock so that only
// one replica runs an acquisition pass per slot.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultKey is the Redis key guarding acquisition runs.
const DefaultKey = "courtrec:acquisition:run"

// ErrNotHeld is returned by release when the lock expired or changed owner.
var ErrNotHeld = errors.New("run lock not held")

// compare-and-delete so a slow holder never frees a lock it lost to TTL expiry.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// Lock is a single-key lease in Redis.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Lock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	l := NewWithClient(client, cfg.Key, cfg.TTL)
	l.logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Str("key", l.key).Msg("connected to Redis run lock")
	return l, nil
}

// NewWithClient wraps an existing client. Empty key and non-positive ttl fall
// back to DefaultKey and one hour.
func NewWithClient(client *redis.Client, key string, ttl time.Duration) *Lock {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Lock{client: client, key: key, ttl: ttl, logger: xglog.WithComponent("runlock")}
}

// TryLock attempts to take the lock without blocking.
func (l *Lock) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	l.logger.Debug().Str("key", l.key).Dur("ttl", l.ttl).Msg("run lock acquired")

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("redis release %s: %w", l.key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}
	return release, true, nil
}

// HealthCheck checks if Redis is available.
func (l *Lock) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *Lock) Close() error {
	return l.client.Close()
}
