package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/crmsync/internal/repository"
	"github.com/utafrali/crmsync/pkg/logger"
)

// AggregateResult summarizes one aggregation run.
type AggregateResult struct {
	TenantsProcessed int   `json:"tenants_processed"`
	ContactsUpdated  int64 `json:"contacts_updated"`
}

// AggregateEventPublisher emits aggregation lifecycle events.
type AggregateEventPublisher interface {
	PublishContactsAggregated(ctx context.Context, tenantID string, result *AggregateResult) error
}

// AggregatorService recomputes per-contact opportunity totals. Contacts with
// no opportunities are left untouched.
type AggregatorService struct {
	creds    repository.CredentialRepository
	contacts repository.ContactRepository
	producer AggregateEventPublisher
	logger   *slog.Logger
}

// NewAggregatorService creates a new aggregator. producer may be nil.
func NewAggregatorService(creds repository.CredentialRepository, contacts repository.ContactRepository, producer AggregateEventPublisher, log *slog.Logger) *AggregatorService {
	return &AggregatorService{
		creds:    creds,
		contacts: contacts,
		producer: producer,
		logger:   log,
	}
}

// Aggregate recomputes opportunity totals for one tenant, or for every
// registered tenant when tenantID is empty.
func (s *AggregatorService) Aggregate(ctx context.Context, tenantID string) (*AggregateResult, error) {
	result := &AggregateResult{}

	tenants, err := resolveTenants(ctx, s.creds, tenantID)
	if err != nil {
		return nil, err
	}

	for _, tenant := range tenants {
		tctx := logger.WithTenantID(ctx, tenant)

		updated, err := s.contacts.UpdateOpportunityTotals(tctx, tenant)
		if err != nil {
			return nil, err
		}

		result.TenantsProcessed++
		result.ContactsUpdated += updated
		contactsAggregated.Add(float64(updated))

		s.logger.InfoContext(tctx, "tenant opportunity totals recomputed",
			slog.String("tenant_id", tenant),
			slog.Int64("contacts_updated", updated),
		)
	}

	if s.producer != nil {
		if err := s.producer.PublishContactsAggregated(ctx, tenantID, result); err != nil {
			s.logger.WarnContext(ctx, "publish contacts aggregated event", slog.String("error", err.Error()))
		}
	}
	return result, nil
}
