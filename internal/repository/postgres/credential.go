package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/crmsync/internal/domain"
	"github.com/utafrali/crmsync/pkg/database"
	apperrors "github.com/utafrali/crmsync/pkg/errors"
)

// CredentialRepository implements repository.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool database.DBTX
}

// NewCredentialRepository creates a new PostgreSQL-backed credential repository.
func NewCredentialRepository(pool database.DBTX) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// GetByTenant retrieves the credential for a tenant.
func (r *CredentialRepository) GetByTenant(ctx context.Context, tenantID string) (*domain.Credential, error) {
	query := `
		SELECT tenant_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM crm_credentials
		WHERE tenant_id = $1`

	var cred domain.Credential
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&cred.TenantID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	return &cred, nil
}

// ListTenantIDs returns the IDs of all tenants with stored credentials.
func (r *CredentialRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	query := `SELECT tenant_id FROM crm_credentials ORDER BY tenant_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenant ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant id rows: %w", err)
	}

	return ids, nil
}

// Upsert stores a credential, replacing any existing one for the tenant.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *domain.Credential) error {
	query := `
		INSERT INTO crm_credentials (tenant_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		cred.TenantID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}

	return nil
}

// UpdateTokens replaces the token pair and expiry for a tenant.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE crm_credentials
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = $5
		WHERE tenant_id = $1`

	ct, err := r.pool.Exec(ctx, query, tenantID, accessToken, refreshToken, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update credential tokens: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("credential", tenantID)
	}

	return nil
}
