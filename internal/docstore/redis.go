package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/teachai/server/internal/metrics"
)

const (
	redisKeyPrefix     = "doc:"
	redisChannelPrefix = "doc.changes:"
)

// RedisStore stores documents as plain values and pushes changes over
// pub/sub. Each Set publishes the written key; subscribers re-read the value
// on every message, so delivery is at-least-once with fresh state.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a store over an existing client. The caller owns the
// client lifecycle when sharing it; Close here closes it.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Get returns the document stored at key.
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document %q: %w", key, err)
	}
	return json.RawMessage(val), true, nil
}

// Set overwrites the whole document at key and publishes the change.
func (s *RedisStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, []byte(doc), 0).Err(); err != nil {
		return fmt.Errorf("set document %q: %w", key, err)
	}
	if err := s.client.Publish(ctx, redisChannelPrefix+key, key).Err(); err != nil {
		// The write succeeded; a lost notification only delays observers
		// until their next read.
		s.logger.Warn("docstore publish failed", "key", key, "error", err)
	}
	return nil
}

// Subscribe watches a single document.
func (s *RedisStore) Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error) {
	pubsub := s.client.Subscribe(ctx, redisChannelPrefix+key)
	// Force the subscription to be established before the initial read so no
	// change between read and subscribe is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe document %q: %w", key, err)
	}

	doc, ok, err := s.Get(ctx, key)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	fn(doc, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pubsub.Channel() {
			readCtx := context.Background()
			doc, ok, err := s.Get(readCtx, key)
			if err != nil {
				s.logger.Error("docstore refresh after publish failed", "key", key, "error", err)
				continue
			}
			fn(doc, ok)
			metrics.DocstoreNotifications.WithLabelValues(ProviderRedis).Inc()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
