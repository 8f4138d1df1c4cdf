// Package redisstore keeps EduTrack session records in Redis so several
// client processes on one host share the same role slots.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pensezy/edutrack/pkg/sdk"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "edutrack:session:"

// Store implements sdk.SessionStore on a Redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ sdk.SessionStore = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL expires records after ttl. Zero keeps them until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New wraps client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial parses a redis:// URL, connects and pings the server.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Store, error) {
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, opts...), nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(slot sdk.Slot) string {
	return s.prefix + string(slot)
}

func (s *Store) Load(ctx context.Context, slot sdk.Slot) (*sdk.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.key(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sdk.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", slot, err)
	}
	return sdk.DecodeSessionRecord(data)
}

func (s *Store) Save(ctx context.Context, slot sdk.Slot, rec *sdk.SessionRecord) error {
	data, err := sdk.EncodeSessionRecord(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(slot), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", slot, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, slot sdk.Slot) error {
	if err := s.client.Del(ctx, s.key(slot)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", slot, err)
	}
	return nil
}

// Clear deletes every role slot and the current slot in one pipeline.
func (s *Store) Clear(ctx context.Context) error {
	slots := sdk.Slots()
	keys := make([]string, 0, len(slots))
	for _, slot := range slots {
		keys = append(keys, s.key(slot))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear sessions: %w", err)
	}
	return nil
}
