// Package redis implements the cache store on a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fincrime_engine/internal/repository"
)

var _ repository.CacheStore = (*CacheStore)(nil)

const scanBatch = 500

type CacheStore struct {
	client *goredis.Client
	logger *slog.Logger
}

// Open parses a redis:// URL and verifies the server is reachable.
func Open(ctx context.Context, url string, logger *slog.Logger) (*CacheStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	store := New(goredis.NewClient(opts), logger)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func New(client *goredis.Client, logger *slog.Logger) *CacheStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheStore{client: client, logger: logger}
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", repository.ErrCache, op, err)
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s", repository.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, wrap("get "+key, err)
	}
	return b, nil
}

func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrap("set "+key, err)
	}
	return nil
}

func (s *CacheStore) SetAdd(ctx context.Context, set, member string) error {
	if err := s.client.SAdd(ctx, set, member).Err(); err != nil {
		return wrap("sadd "+set, err)
	}
	return nil
}

func (s *CacheStore) SetMembers(ctx context.Context, set string) ([]string, error) {
	members, err := s.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, wrap("smembers "+set, err)
	}
	slices.Sort(members)
	return members, nil
}

func (s *CacheStore) SetIsMember(ctx context.Context, set, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, wrap("sismember "+set, err)
	}
	return ok, nil
}

// Scan walks the keyspace with SCAN rather than KEYS so large caches do not
// block the server.
func (s *CacheStore) Scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, wrap("scan "+prefix, err)
	}

	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (s *CacheStore) ListPush(ctx context.Context, key string, value []byte, maxLen int) error {
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	if maxLen > 0 {
		pipe.LTrim(ctx, key, 0, int64(maxLen-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("lpush "+key, err)
	}
	return nil
}

func (s *CacheStore) ListRange(ctx context.Context, key string, n int) ([][]byte, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}

	values, err := s.client.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, wrap("lrange "+key, err)
	}

	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

func (s *CacheStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrap("ping", err)
	}
	return nil
}

func (s *CacheStore) Close() error {
	return s.client.Close()
}
