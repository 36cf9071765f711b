package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/crmsync/internal/crm"
	"github.com/utafrali/crmsync/internal/domain"
	"github.com/utafrali/crmsync/internal/repository"
	"github.com/utafrali/crmsync/pkg/logger"
)

// SyncResult summarizes one sync run.
type SyncResult struct {
	Entity           string   `json:"entity"`
	TenantsProcessed int      `json:"tenants_processed"`
	TenantsSkipped   []string `json:"tenants_skipped,omitempty"`
	Fetched          int      `json:"fetched"`
	Inserted         int      `json:"inserted"`
	Updated          int      `json:"updated"`
}

// SyncEventPublisher emits sync lifecycle events.
type SyncEventPublisher interface {
	PublishContactsSynced(ctx context.Context, tenantID string, result *SyncResult) error
	PublishOpportunitiesSynced(ctx context.Context, tenantID string, result *SyncResult) error
}

// tokenProvider yields valid access tokens per tenant.
type tokenProvider interface {
	ValidToken(ctx context.Context, tenantID string) (string, error)
}

// SyncService orchestrates full sync runs: resolve tenants, fetch pages from
// the CRM, reconcile against the store and flush in batches. Tenant-scoped
// failures are logged and skipped; persistence failures abort the run so the
// caller's retry envelope can take over.
type SyncService struct {
	creds         repository.CredentialRepository
	contacts      repository.ContactRepository
	opportunities repository.OpportunityRepository
	gateway       CRMGateway
	tokens        tokenProvider
	producer      SyncEventPublisher
	batchSize     int
	logger        *slog.Logger
}

// NewSyncService creates a new sync orchestrator. producer may be nil.
func NewSyncService(
	creds repository.CredentialRepository,
	contacts repository.ContactRepository,
	opportunities repository.OpportunityRepository,
	gateway CRMGateway,
	tokens tokenProvider,
	producer SyncEventPublisher,
	batchSize int,
	log *slog.Logger,
) *SyncService {
	return &SyncService{
		creds:         creds,
		contacts:      contacts,
		opportunities: opportunities,
		gateway:       gateway,
		tokens:        tokens,
		producer:      producer,
		batchSize:     batchSize,
		logger:        log,
	}
}

// SyncContacts syncs contacts for one tenant, or for every registered tenant
// when tenantID is empty. An empty tenant set yields a zero result, not an
// error.
func (s *SyncService) SyncContacts(ctx context.Context, tenantID string) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{Entity: "contacts"}

	if err := s.run(ctx, tenantID, result, s.syncTenantContacts); err != nil {
		return nil, err
	}

	syncRunDuration.WithLabelValues("contacts").Observe(time.Since(start).Seconds())
	if s.producer != nil {
		if err := s.producer.PublishContactsSynced(ctx, tenantID, result); err != nil {
			s.logger.WarnContext(ctx, "publish contacts synced event", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

// SyncOpportunities syncs opportunities for one tenant, or for every
// registered tenant when tenantID is empty.
func (s *SyncService) SyncOpportunities(ctx context.Context, tenantID string) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{Entity: "opportunities"}

	if err := s.run(ctx, tenantID, result, s.syncTenantOpportunities); err != nil {
		return nil, err
	}

	syncRunDuration.WithLabelValues("opportunities").Observe(time.Since(start).Seconds())
	if s.producer != nil {
		if err := s.producer.PublishOpportunitiesSynced(ctx, tenantID, result); err != nil {
			s.logger.WarnContext(ctx, "publish opportunities synced event", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

// run drives one sync pass over the resolved tenant set.
func (s *SyncService) run(ctx context.Context, tenantID string, result *SyncResult, syncTenant func(context.Context, string, *SyncResult) error) error {
	tenants, err := resolveTenants(ctx, s.creds, tenantID)
	if err != nil {
		return err
	}

	for _, tenant := range tenants {
		tctx := logger.WithTenantID(ctx, tenant)
		if err := syncTenant(tctx, tenant, result); err != nil {
			if !tenantScoped(err) {
				return err
			}
			syncTenantsSkipped.WithLabelValues(result.Entity).Inc()
			s.logger.ErrorContext(tctx, "skipping tenant after sync failure",
				slog.String("tenant_id", tenant),
				slog.String("entity", result.Entity),
				slog.String("error", err.Error()),
			)
			result.TenantsSkipped = append(result.TenantsSkipped, tenant)
			continue
		}
		result.TenantsProcessed++
	}
	return nil
}

func (s *SyncService) syncTenantContacts(ctx context.Context, tenantID string, result *SyncResult) error {
	token, err := s.tokens.ValidToken(ctx, tenantID)
	if err != nil {
		return err
	}

	snapshot, err := s.contacts.SnapshotByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load contact snapshot: %w", err)
	}

	rec := newReconciler(s.contacts, snapshot, s.batchSize, func(c domain.Contact) string { return c.ContactID })

	stream := s.gateway.ContactPages(token, tenantID)
	var streamErr error
	for {
		page, err := stream.Next(ctx)
		if err != nil {
			// The stream is dead but already-classified rows still flush
			// below; re-fetching them next run converges on the same state.
			streamErr = err
			break
		}
		if page == nil {
			break
		}
		result.Fetched += len(page)
		syncRecordsFetched.WithLabelValues("contacts").Add(float64(len(page)))

		for _, raw := range page {
			if err := rec.add(ctx, s.contactFromRecord(ctx, raw, tenantID)); err != nil {
				return err
			}
		}
	}

	if err := rec.flush(ctx); err != nil {
		return err
	}

	result.Inserted += rec.inserted
	result.Updated += rec.updated
	syncRecordsWritten.WithLabelValues("contacts", "inserted").Add(float64(rec.inserted))
	syncRecordsWritten.WithLabelValues("contacts", "updated").Add(float64(rec.updated))

	if streamErr != nil {
		return streamErr
	}

	s.logger.InfoContext(ctx, "tenant contacts synced",
		slog.String("tenant_id", tenantID),
		slog.Int("inserted", rec.inserted),
		slog.Int("updated", rec.updated),
	)
	return nil
}

func (s *SyncService) syncTenantOpportunities(ctx context.Context, tenantID string, result *SyncResult) error {
	token, err := s.tokens.ValidToken(ctx, tenantID)
	if err != nil {
		return err
	}

	snapshot, err := s.opportunities.SnapshotByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load opportunity snapshot: %w", err)
	}

	rec := newReconciler(s.opportunities, snapshot, s.batchSize, func(o domain.Opportunity) string { return o.OpportunityID })

	stream := s.gateway.OpportunityPages(token, tenantID)
	var streamErr error
	for {
		page, err := stream.Next(ctx)
		if err != nil {
			// Same as the contact path: keep what was already classified.
			streamErr = err
			break
		}
		if page == nil {
			break
		}
		result.Fetched += len(page)
		syncRecordsFetched.WithLabelValues("opportunities").Add(float64(len(page)))

		for _, raw := range page {
			if err := rec.add(ctx, s.opportunityFromRecord(ctx, raw, tenantID)); err != nil {
				return err
			}
		}
	}

	if err := rec.flush(ctx); err != nil {
		return err
	}

	result.Inserted += rec.inserted
	result.Updated += rec.updated
	syncRecordsWritten.WithLabelValues("opportunities", "inserted").Add(float64(rec.inserted))
	syncRecordsWritten.WithLabelValues("opportunities", "updated").Add(float64(rec.updated))

	if streamErr != nil {
		return streamErr
	}

	s.logger.InfoContext(ctx, "tenant opportunities synced",
		slog.String("tenant_id", tenantID),
		slog.Int("inserted", rec.inserted),
		slog.Int("updated", rec.updated),
	)
	return nil
}

func (s *SyncService) contactFromRecord(ctx context.Context, rec crm.ContactRecord, tenantID string) domain.Contact {
	return domain.Contact{
		ContactID: rec.ID,
		FirstName: domain.TitleCase(rec.FirstNameLowerCase),
		LastName:  domain.TitleCase(rec.LastNameLowerCase),
		Email:     rec.Email,
		Phone:     rec.Phone,
		TenantID:  tenantID,
		CreatedAt: s.parseTimestamp(ctx, rec.ID, rec.DateAdded),
		UpdatedAt: s.parseTimestamp(ctx, rec.ID, rec.DateUpdated),
	}
}

func (s *SyncService) opportunityFromRecord(ctx context.Context, rec crm.OpportunityRecord, tenantID string) domain.Opportunity {
	return domain.Opportunity{
		OpportunityID: rec.ID,
		ContactID:     rec.ContactID,
		Name:          rec.Name,
		Phone:         rec.Phone,
		TenantID:      tenantID,
		MonetaryValue: rec.MonetaryValue,
		CreatedAt:     s.parseTimestamp(ctx, rec.ID, rec.CreatedAt),
		UpdatedAt:     s.parseTimestamp(ctx, rec.ID, rec.UpdatedAt),
	}
}

// parseTimestamp converts an upstream timestamp to IST. Unparseable values
// are dropped with a warning rather than failing the record.
func (s *SyncService) parseTimestamp(ctx context.Context, recordID, value string) *time.Time {
	if value == "" {
		return nil
	}
	ts, err := domain.ToIST(value)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping unparseable timestamp",
			slog.String("record_id", recordID),
			slog.String("value", value),
		)
		return nil
	}
	return &ts
}

// tenantScoped reports whether an error is confined to a single tenant and
// must not abort the whole run.
func tenantScoped(err error) bool {
	return errors.Is(err, ErrCredentialMissing) ||
		errors.Is(err, ErrTokenRefreshFailed) ||
		errors.Is(err, crm.ErrRequestFailed) ||
		errors.Is(err, crm.ErrMalformedResponse)
}

// resolveTenants expands an empty tenant ID to every registered tenant.
func resolveTenants(ctx context.Context, creds repository.CredentialRepository, tenantID string) ([]string, error) {
	if tenantID != "" {
		return []string{tenantID}, nil
	}
	ids, err := creds.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return ids, nil
}
