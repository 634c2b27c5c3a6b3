// Package dedup suppresses repeated dispatch of a redelivered change event.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notify:event:"

// Store remembers which events were already dispatched.
type Store interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// RedisStore keeps one key per dispatched event with a TTL.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func Key(eventID string) string {
	return keyPrefix + eventID
}

func (s *RedisStore) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, Key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the event only after it has been dispatched, so a crash
// mid-dispatch still allows redelivery.
func (s *RedisStore) Mark(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return s.client.Set(ctx, Key(eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}

// NoopStore never reports an event as seen.
type NoopStore struct{}

func (NoopStore) Seen(context.Context, string) (bool, error) { return false, nil }
func (NoopStore) Mark(context.Context, string) error         { return nil }
