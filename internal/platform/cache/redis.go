package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Store is a small JSON-payload cache used by analytics summaries.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore wraps a Redis client with a default TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// ErrMiss indicates a cache miss.
var ErrMiss = errors.New("platform/cache: miss")

// Get returns the raw payload for key, or ErrMiss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, ErrMiss
	}
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Set stores payload under key with the default TTL.
func (s *Store) Set(ctx context.Context, key string, payload []byte) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, key, payload, s.ttl).Err()
}

// Invalidate drops keys matching the exact names given.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if s == nil || s.client == nil || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
