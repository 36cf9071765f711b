package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/crmsync/internal/service"
	pkgkafka "github.com/utafrali/crmsync/pkg/kafka"
)

// Kafka topics for sync lifecycle events.
const (
	TopicContactsSynced      = "crm.contacts.synced"
	TopicOpportunitiesSynced = "crm.opportunities.synced"
	TopicContactsAggregated  = "crm.contacts.aggregated"
)

// Aggregate type constant.
const AggregateTypeTenant = "tenant"

// Source identifier for events originating from the sync service.
const SourceSyncService = "crm-sync"

// SyncCompletedData is the payload for a *.synced event. An empty TenantID
// means the run covered every registered tenant.
type SyncCompletedData struct {
	TenantID         string   `json:"tenant_id,omitempty"`
	Entity           string   `json:"entity"`
	TenantsProcessed int      `json:"tenants_processed"`
	TenantsSkipped   []string `json:"tenants_skipped,omitempty"`
	Fetched          int      `json:"fetched"`
	Inserted         int      `json:"inserted"`
	Updated          int      `json:"updated"`
}

// AggregationCompletedData is the payload for a contacts.aggregated event.
type AggregationCompletedData struct {
	TenantID         string `json:"tenant_id,omitempty"`
	TenantsProcessed int    `json:"tenants_processed"`
	ContactsUpdated  int64  `json:"contacts_updated"`
}

// Producer publishes sync lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the sync service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishContactsSynced publishes a contacts.synced event.
func (p *Producer) PublishContactsSynced(ctx context.Context, tenantID string, result *service.SyncResult) error {
	return p.publishSynced(ctx, TopicContactsSynced, tenantID, result)
}

// PublishOpportunitiesSynced publishes an opportunities.synced event.
func (p *Producer) PublishOpportunitiesSynced(ctx context.Context, tenantID string, result *service.SyncResult) error {
	return p.publishSynced(ctx, TopicOpportunitiesSynced, tenantID, result)
}

func (p *Producer) publishSynced(ctx context.Context, topic, tenantID string, result *service.SyncResult) error {
	data := SyncCompletedData{
		TenantID:         tenantID,
		Entity:           result.Entity,
		TenantsProcessed: result.TenantsProcessed,
		TenantsSkipped:   result.TenantsSkipped,
		Fetched:          result.Fetched,
		Inserted:         result.Inserted,
		Updated:          result.Updated,
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID(tenantID), AggregateTypeTenant, SourceSyncService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published sync event",
		slog.String("topic", topic),
		slog.String("tenant_id", tenantID),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
	)
	return nil
}

// PublishContactsAggregated publishes a contacts.aggregated event.
func (p *Producer) PublishContactsAggregated(ctx context.Context, tenantID string, result *service.AggregateResult) error {
	data := AggregationCompletedData{
		TenantID:         tenantID,
		TenantsProcessed: result.TenantsProcessed,
		ContactsUpdated:  result.ContactsUpdated,
	}

	event, err := pkgkafka.NewEvent(TopicContactsAggregated, aggregateID(tenantID), AggregateTypeTenant, SourceSyncService, data)
	if err != nil {
		return fmt.Errorf("create contacts.aggregated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicContactsAggregated, event); err != nil {
		return fmt.Errorf("publish contacts.aggregated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published aggregation event",
		slog.String("tenant_id", tenantID),
		slog.Int64("contacts_updated", result.ContactsUpdated),
	)
	return nil
}

func aggregateID(tenantID string) string {
	if tenantID == "" {
		return "all"
	}
	return tenantID
}
