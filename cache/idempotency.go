package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const inFlightMarker = "\x00in-flight"

// IdempotencyState describes what is known about an idempotency key.
type IdempotencyState int

const (
	IdempotencyUnknown IdempotencyState = iota
	IdempotencyInFlight
	IdempotencyCompleted
)

// IdempotencyStore remembers the response of a request keyed by a
// client-supplied Idempotency-Key, scoped per caller.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Reserve claims the key. It returns false when the key is already reserved
// or completed.
func (s *IdempotencyStore) Reserve(ctx context.Context, scope, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, idempotencyKey(scope, key), inFlightMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Complete stores the final response body for the key.
func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, body []byte) error {
	if err := s.rdb.Set(ctx, idempotencyKey(scope, key), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release forgets a reservation so the client may retry after a failure.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, idempotencyKey(scope, key)).Err()
}

func (s *IdempotencyStore) Lookup(ctx context.Context, scope, key string) (IdempotencyState, []byte, error) {
	val, err := s.rdb.Get(ctx, idempotencyKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return IdempotencyUnknown, nil, nil
	}
	if err != nil {
		return IdempotencyUnknown, nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if string(val) == inFlightMarker {
		return IdempotencyInFlight, nil, nil
	}
	return IdempotencyCompleted, val, nil
}
