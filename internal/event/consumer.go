package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/crmsync/internal/service"
	"github.com/utafrali/crmsync/internal/worker"
	pkgkafka "github.com/utafrali/crmsync/pkg/kafka"
)

// Enqueuer submits background jobs.
type Enqueuer interface {
	Enqueue(name string, fn worker.JobFunc) (uuid.UUID, error)
}

// Aggregator recomputes opportunity totals for a tenant scope.
type Aggregator interface {
	Aggregate(ctx context.Context, tenantID string) (*service.AggregateResult, error)
}

// Consumer chains aggregation onto completed opportunity syncs: every
// opportunities.synced event enqueues an aggregation job for the same tenant
// scope.
type Consumer struct {
	pool       Enqueuer
	aggregator Aggregator
	logger     *slog.Logger
}

// NewConsumer creates a new event consumer for the sync service.
func NewConsumer(pool Enqueuer, aggregator Aggregator, logger *slog.Logger) *Consumer {
	return &Consumer{
		pool:       pool,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicOpportunitiesSynced:
		return c.handleOpportunitiesSynced(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleOpportunitiesSynced(ctx context.Context, event *pkgkafka.Event) error {
	var data SyncCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal opportunities.synced data: %w", err)
	}

	tenantID := data.TenantID
	jobID, err := c.pool.Enqueue("aggregate-opportunity-totals", func(jobCtx context.Context) error {
		_, err := c.aggregator.Aggregate(jobCtx, tenantID)
		return err
	})
	if err != nil {
		return fmt.Errorf("enqueue aggregation: %w", err)
	}

	c.logger.InfoContext(ctx, "aggregation enqueued after opportunity sync",
		slog.String("tenant_id", tenantID),
		slog.String("job_id", jobID.String()),
		slog.String("event_id", event.EventID),
	)
	return nil
}
