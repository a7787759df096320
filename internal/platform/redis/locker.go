// Package redis provides a Redis-backed mutual exclusion lock so that
// several scheduler instances never serve the same subscriber at once.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "taskboard:assign:"
	releaseTimeout = 5 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another instance is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Connect opens a client and verifies the server answers.
func Connect(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	const op = "redis.Connect"
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// Locker hands out expiring locks keyed by name.
type Locker struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewLocker creates a Locker. Locks expire after ttl even if never released.
func NewLocker(client goredis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Locker {
	return &Locker{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "redis_locker"),
	}
}

// TryLock attempts to take the lock without waiting. When acquired, the
// returned unlock func releases it.
func (l *Locker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	const op = "redis.TryLock"
	fullKey := keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", "key", fullKey, "error", err)
		}
	}
	return unlock, true, nil
}
