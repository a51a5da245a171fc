package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Store implements repository.KeyValueStore on Redis. Every write refreshes
// the key's TTL.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStore creates a Redis-backed store. A zero ttl keeps keys forever.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, end := database.TraceCommand(ctx, "redis", "GetCart", "GET "+key)
	defer func() { end(err) }()

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart snapshot", key)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return data, nil
}

// Set stores value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, end := database.TraceCommand(ctx, "redis", "SetCart", "SET "+key)
	defer func() { end(err) }()

	if err = s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceCommand(ctx, "redis", "DeleteCart", "DEL "+key)
	defer func() { end(err) }()

	if err = s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
