package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idempotencyTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMemoryIdempotencyStore_AddAndContains(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	exists, err := store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Add(ctx, "ev-1"))

	exists, err = store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryIdempotencyStore_TTLExpiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "ev-1"))
	time.Sleep(20 * time.Millisecond)

	exists, err := store.Contains(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, exists, "entry should have expired")
	assert.Equal(t, 0, store.Len(), "expired entry should be removed on access")
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls atomic.Int32

	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls.Add(1)
		return nil
	}, idempotencyTestLogger())

	event, err := NewEvent("crm.opportunities.synced", "loc-1", "tenant", "crm-sync", nil)
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))

	assert.Equal(t, int32(1), calls.Load(), "duplicate event should be skipped")
}

func TestIdempotentHandler_FailedHandlerNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls atomic.Int32

	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		if calls.Add(1) == 1 {
			return fmt.Errorf("transient failure")
		}
		return nil
	}, idempotencyTestLogger())

	event, err := NewEvent("crm.contacts.synced", "loc-1", "tenant", "crm-sync", nil)
	require.NoError(t, err)

	require.Error(t, handler(context.Background(), event))
	// A failed event must not be marked processed; the retry should run.
	require.NoError(t, handler(context.Background(), event))
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotentHandler_EmptyEventID_PassesThrough(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls atomic.Int32

	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls.Add(1)
		return nil
	}, idempotencyTestLogger())

	event := &Event{EventType: "crm.contacts.synced"}
	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))

	assert.Equal(t, int32(2), calls.Load(), "events without IDs cannot be deduplicated")
	assert.Equal(t, 0, store.Len())
}
