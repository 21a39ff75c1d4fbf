package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// BalanceCache is the read-side cache for wallet balances.
type BalanceCache interface {
	Get(ctx context.Context, userID string) (*cachedBalance, error)
	Set(ctx context.Context, userID string, balance *cachedBalance) error
	Delete(ctx context.Context, userID string) error
}

type cachedBalance struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

func NewRedisBalanceCache(client *redis.Client) *RedisBalanceCache {
	return &RedisBalanceCache{
		client:  client,
		baseTTL: 5 * time.Minute,
	}
}

type RedisBalanceCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisBalanceCache) Get(ctx context.Context, userID string) (*cachedBalance, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var balance cachedBalance
	if err2 := json.Unmarshal(data, &balance); err2 != nil {
		return nil, fmt.Errorf("unmarshal balance failed: %w", err2)
	}
	return &balance, nil
}

func (r *RedisBalanceCache) Set(ctx context.Context, userID string, balance *cachedBalance) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("marshal balance failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, cacheKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisBalanceCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("wallet:%s", userID)
}

var _ BalanceCache = (*RedisBalanceCache)(nil)
