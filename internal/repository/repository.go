// Package repository defines data access interfaces for the sync engine.
package repository

import (
	"context"
	"time"

	"github.com/utafrali/crmsync/internal/domain"
)

// CredentialRepository manages per-tenant OAuth credentials.
type CredentialRepository interface {
	// GetByTenant retrieves the credential for a tenant.
	GetByTenant(ctx context.Context, tenantID string) (*domain.Credential, error)

	// ListTenantIDs returns the IDs of all tenants with stored credentials.
	ListTenantIDs(ctx context.Context) ([]string, error)

	// Upsert stores a credential, replacing any existing one for the tenant.
	Upsert(ctx context.Context, cred *domain.Credential) error

	// UpdateTokens replaces the token pair and expiry for a tenant.
	UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error
}

// ContactRepository manages synced contacts.
type ContactRepository interface {
	// SnapshotByTenant returns the set of contact IDs already stored for a tenant.
	SnapshotByTenant(ctx context.Context, tenantID string) (map[string]struct{}, error)

	// BulkUpsert writes new contacts in one transaction. Existing rows are
	// overwritten except for their opportunity totals.
	BulkUpsert(ctx context.Context, contacts []domain.Contact) error

	// BulkUpdate rewrites existing contacts in one transaction.
	BulkUpdate(ctx context.Context, contacts []domain.Contact) error

	// UpdateOpportunityTotals recomputes opportunity totals for every contact
	// of a tenant that has at least one opportunity. It returns the number of
	// contacts updated.
	UpdateOpportunityTotals(ctx context.Context, tenantID string) (int64, error)
}

// OpportunityRepository manages synced opportunities.
type OpportunityRepository interface {
	// SnapshotByTenant returns the set of opportunity IDs already stored for a tenant.
	SnapshotByTenant(ctx context.Context, tenantID string) (map[string]struct{}, error)

	// BulkUpsert writes new opportunities in one transaction.
	BulkUpsert(ctx context.Context, opportunities []domain.Opportunity) error

	// BulkUpdate rewrites existing opportunities in one transaction.
	BulkUpdate(ctx context.Context, opportunities []domain.Opportunity) error
}
