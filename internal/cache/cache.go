// Package cache holds the latest-prices response in Redis between scrape runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/mse-data/internal/config"
	"github.com/rickgao/mse-data/internal/model"
)

// LatestKey is the Redis key of the cached latest-prices list.
const LatestKey = "mse:latest"

// LatestCache stores the latest price of every security.
type LatestCache interface {
	// GetLatest returns the cached list; ok is false on a miss.
	GetLatest(ctx context.Context) (prices []model.LatestPrice, ok bool, err error)
	SetLatest(ctx context.Context, prices []model.LatestPrice) error
	Invalidate(ctx context.Context) error
}

// Redis implements LatestCache on a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.CacheConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{client: client, ttl: cfg.TTL}, nil
}

// GetLatest implements LatestCache.
func (r *Redis) GetLatest(ctx context.Context) ([]model.LatestPrice, bool, error) {
	data, err := r.client.Get(ctx, LatestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get latest prices: %w", err)
	}

	prices, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return prices, true, nil
}

// SetLatest implements LatestCache.
func (r *Redis) SetLatest(ctx context.Context, prices []model.LatestPrice) error {
	data, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("encode latest prices: %w", err)
	}
	if err := r.client.Set(ctx, LatestKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set latest prices: %w", err)
	}
	return nil
}

// Invalidate implements LatestCache.
func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, LatestKey).Err(); err != nil {
		return fmt.Errorf("invalidate latest prices: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func decode(data []byte) ([]model.LatestPrice, error) {
	var prices []model.LatestPrice
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("decode latest prices: %w", err)
	}
	return prices, nil
}

// Nop is a LatestCache that never holds anything.
type Nop struct{}

func (Nop) GetLatest(ctx context.Context) ([]model.LatestPrice, bool, error) { return nil, false, nil }
func (Nop) SetLatest(ctx context.Context, prices []model.LatestPrice) error  { return nil }
func (Nop) Invalidate(ctx context.Context) error                             { return nil }
