package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/options"
)

// redisStore persists device state in a hash on the device-local redis
// instance. Redis itself is configured for on-disk persistence, so Commit is
// a background save request rather than a hard barrier.
type redisStore struct {
	rdb     *redis.Client
	hashKey string
}

var _ core.Store = (*redisStore)(nil)

// NewRedis connects to the local redis instance and verifies it is reachable.
func NewRedis(ctx context.Context, opts *options.RedisOptions) (core.Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisStore{rdb: rdb, hashKey: opts.HashKey}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.HGet(ctx, s.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrKeyNotFound
	}
	return val, err
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.HSet(ctx, s.hashKey, key, value).Err()
}

func (s *redisStore) Commit(ctx context.Context) error {
	// Ask for an async snapshot; ignore "save already in progress".
	err := s.rdb.BgSave(ctx).Err()
	if err != nil && strings.Contains(err.Error(), "in progress") {
		return nil
	}
	return err
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
