package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachai/server/internal/metrics"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	doc := json.RawMessage(`{"n":1}`)
	require.NoError(t, store.Set(ctx, "k", doc))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(got))

	// Whole-document overwrite, not a merge.
	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"m":2}`)))
	got, _, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":2}`, string(got))
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	type change struct {
		doc json.RawMessage
		ok  bool
	}
	var seen []change
	unsub, err := store.Subscribe(ctx, "k", func(doc json.RawMessage, ok bool) {
		seen = append(seen, change{doc, ok})
	})
	require.NoError(t, err)

	// Fires once immediately with absent state.
	require.Len(t, seen, 1)
	assert.False(t, seen[0].ok)

	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"n":1}`)))
	require.Len(t, seen, 2)
	assert.True(t, seen[1].ok)
	assert.JSONEq(t, `{"n":1}`, string(seen[1].doc))

	// Changes to other keys do not fire.
	require.NoError(t, store.Set(ctx, "other", json.RawMessage(`{}`)))
	assert.Len(t, seen, 2)

	// After unsubscribe, nothing fires. A second call is harmless.
	unsub()
	unsub()
	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"n":2}`)))
	assert.Len(t, seen, 2)
}

func TestMemoryStoreClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Set(ctx, "k", json.RawMessage(`{}`)), ErrClosed)
	_, _, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Subscribe(ctx, "k", func(json.RawMessage, bool) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStoreCopiesDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	doc := json.RawMessage(`{"n":1}`)
	require.NoError(t, store.Set(ctx, "k", doc))
	doc[2] = 'x' // mutate the caller's slice

	got, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got))
}

func TestMemoryStoreNotificationMetric(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	counter := metrics.DocstoreNotifications.WithLabelValues(ProviderMemory)
	before := testutil.ToFloat64(counter)

	unsub, err := store.Subscribe(ctx, "k", func(json.RawMessage, bool) {})
	require.NoError(t, err)
	defer unsub()

	// The initial subscription fire is not a change notification.
	assert.Equal(t, before, testutil.ToFloat64(counter))

	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`{"n":1}`)))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	// Writes to keys nobody watches deliver nothing.
	require.NoError(t, store.Set(ctx, "other", json.RawMessage(`{}`)))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
