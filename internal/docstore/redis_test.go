package docstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisStore(client, logger)
}

func TestRedisStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"n":1}`)))
	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(got))

	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"m":2}`)))
	got, _, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":2}`, string(got))
}

func TestRedisStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	type change struct {
		doc json.RawMessage
		ok  bool
	}
	changes := make(chan change, 8)
	unsub, err := store.Subscribe(ctx, "k", func(doc json.RawMessage, ok bool) {
		changes <- change{doc, ok}
	})
	require.NoError(t, err)
	defer unsub()

	// Initial fire with absent state.
	first := waitChange(t, changes)
	assert.False(t, first.ok)

	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"n":1}`)))
	second := waitChange(t, changes)
	assert.True(t, second.ok)
	assert.JSONEq(t, `{"n":1}`, string(second.doc))
}

func waitChange[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		panic("unreachable")
	}
}
