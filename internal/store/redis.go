package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"crew-tracker/internal/observability"
)

// ConnectionKey is the single key holding the persisted Traccar connection.
// The spelling matches the key the browser dashboard stored.
const ConnectionKey = "mountain-watch-crew:taccar-config"

// ErrNotFound is returned by Load when nothing is persisted.
var ErrNotFound = errors.New("store: not found")

type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, key: ConnectionKey}, nil
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	val, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		observability.StoreErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis GET %s: %w", s.key, err)
	}
	return val, nil
}

// Save writes without expiry; the connection lives until cleared.
func (s *RedisStore) Save(ctx context.Context, raw []byte) error {
	if err := s.rdb.Set(ctx, s.key, raw, 0).Err(); err != nil {
		observability.StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis SET %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		observability.StoreErrors.WithLabelValues("remove").Inc()
		return fmt.Errorf("redis DEL %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
