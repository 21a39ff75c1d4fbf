package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

// RedisLocker implements Locker with SET NX + TTL. The TTL self-heals
// abandoned checkouts (closed tab, crashed client).
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, userID string) (string, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, lockKey(userID), token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return "", ErrAlreadyLocked
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, userID string) error {
	if err := l.client.Del(ctx, lockKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func lockKey(userID string) string {
	return fmt.Sprintf("checkout_lock:%s", userID)
}

var _ Locker = (*RedisLocker)(nil)
