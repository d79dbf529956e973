package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisGraphStore implements GraphStore as a single JSON value in Redis.
// Values are stored without TTL; the document lives until overwritten.
type RedisGraphStore struct {
	client *redis.Client
	key    string
}

// NewRedisGraphStore connects to redisURL and stores the graph under the
// given document name.
func NewRedisGraphStore(ctx context.Context, redisURL, name string) (*RedisGraphStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisGraphStoreFromClient(client, name), nil
}

// NewRedisGraphStoreFromClient wraps an existing client. The store takes
// ownership and closes it on Close.
func NewRedisGraphStoreFromClient(client *redis.Client, name string) *RedisGraphStore {
	return &RedisGraphStore{client: client, key: RedisKey(name)}
}

// RedisKey returns the key holding the named document.
func RedisKey(name string) string {
	if name == "" {
		name = DefaultGraphName
	}
	return "journey:graph:" + name
}

// Load fetches and decodes the document.
func (s *RedisGraphStore) Load(ctx context.Context) (Graph, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Graph{}, ErrNotFound
		}
		return Graph{}, fmt.Errorf("failed to get journey graph: %w", err)
	}

	g, err := DecodeGraph(data)
	if err != nil {
		return Graph{}, fmt.Errorf("%s: %w", s.key, err)
	}
	return g, nil
}

// Save overwrites the document.
func (s *RedisGraphStore) Save(ctx context.Context, g Graph) error {
	data, err := EncodeGraph(g)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set journey graph: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisGraphStore) Close() error {
	return s.client.Close()
}
