package event

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/crmsync/internal/service"
	"github.com/utafrali/crmsync/internal/worker"
	pkgkafka "github.com/utafrali/crmsync/pkg/kafka"
)

type fakeEnqueuer struct {
	names []string
	fns   []worker.JobFunc
	err   error
}

func (f *fakeEnqueuer) Enqueue(name string, fn worker.JobFunc) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.names = append(f.names, name)
	f.fns = append(f.fns, fn)
	return uuid.New(), nil
}

type fakeAggregator struct {
	tenants []string
}

func (f *fakeAggregator) Aggregate(ctx context.Context, tenantID string) (*service.AggregateResult, error) {
	f.tenants = append(f.tenants, tenantID)
	return &service.AggregateResult{TenantsProcessed: 1}, nil
}

func newTestConsumer(t *testing.T) (*Consumer, *fakeEnqueuer, *fakeAggregator) {
	t.Helper()
	pool := &fakeEnqueuer{}
	agg := &fakeAggregator{}
	c := NewConsumer(pool, agg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, pool, agg
}

func syncedEvent(t *testing.T, tenantID string) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.NewEvent(TopicOpportunitiesSynced, aggregateID(tenantID), AggregateTypeTenant, SourceSyncService, SyncCompletedData{
		TenantID: tenantID,
		Entity:   "opportunities",
		Inserted: 3,
	})
	require.NoError(t, err)
	return ev
}

func TestConsumer_OpportunitiesSyncedEnqueuesAggregation(t *testing.T) {
	c, pool, agg := newTestConsumer(t)

	err := c.Handle(context.Background(), syncedEvent(t, "loc-1"))
	require.NoError(t, err)

	require.Equal(t, []string{"aggregate-opportunity-totals"}, pool.names)

	// Run the enqueued job and verify the tenant scope carried over.
	require.NoError(t, pool.fns[0](context.Background()))
	assert.Equal(t, []string{"loc-1"}, agg.tenants)
}

func TestConsumer_AllTenantScopeCarriesOver(t *testing.T) {
	c, pool, agg := newTestConsumer(t)

	require.NoError(t, c.Handle(context.Background(), syncedEvent(t, "")))
	require.Len(t, pool.fns, 1)
	require.NoError(t, pool.fns[0](context.Background()))
	assert.Equal(t, []string{""}, agg.tenants)
}

func TestConsumer_UnknownEventTypeIgnored(t *testing.T) {
	c, pool, _ := newTestConsumer(t)

	ev, err := pkgkafka.NewEvent("crm.contacts.synced", "loc-1", AggregateTypeTenant, SourceSyncService, SyncCompletedData{})
	require.NoError(t, err)

	require.NoError(t, c.Handle(context.Background(), ev))
	assert.Empty(t, pool.names)
}

func TestConsumer_MalformedDataFails(t *testing.T) {
	c, pool, _ := newTestConsumer(t)

	ev := &pkgkafka.Event{
		EventType: TopicOpportunitiesSynced,
		Data:      json.RawMessage(`{"tenant_id":`),
	}

	err := c.Handle(context.Background(), ev)
	require.Error(t, err)
	assert.Empty(t, pool.names)
}

func TestConsumer_EnqueueFailurePropagates(t *testing.T) {
	pool := &fakeEnqueuer{err: worker.ErrQueueFull}
	c := NewConsumer(pool, &fakeAggregator{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := c.Handle(context.Background(), syncedEvent(t, "loc-1"))
	assert.ErrorIs(t, err, worker.ErrQueueFull)
}
