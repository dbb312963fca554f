package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a redis instance, so cooldowns survive scanner
// restarts in live mode.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redis at addr. Keys expire after ttl; a ttl of zero
// keeps them forever.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

func redisKey(symbol, side string) string {
	return "signalstate:" + symbol + ":" + side
}

func (r *Redis) Get(ctx context.Context, symbol, side string) (State, bool, error) {
	data, err := r.client.Get(ctx, redisKey(symbol, side)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("statestore: redis get: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("statestore: decode state: %w", err)
	}
	return st, true, nil
}

func (r *Redis) Put(ctx context.Context, symbol, side string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("statestore: encode state: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(symbol, side), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("statestore: redis set: %w", err)
	}
	return nil
}

// Ping verifies connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
