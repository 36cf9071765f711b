package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/crmsync/internal/domain"
	"github.com/utafrali/crmsync/pkg/database"
)

const upsertOpportunityQuery = `
	INSERT INTO opportunities (opportunity_id, contact_id, name, phone, tenant_id, monetary_value, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (opportunity_id) DO UPDATE SET
		contact_id = EXCLUDED.contact_id,
		name = EXCLUDED.name,
		phone = EXCLUDED.phone,
		tenant_id = EXCLUDED.tenant_id,
		monetary_value = EXCLUDED.monetary_value,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at`

const updateOpportunityQuery = `
	UPDATE opportunities
	SET contact_id = $2, name = $3, phone = $4, monetary_value = $5, created_at = $6, updated_at = $7
	WHERE opportunity_id = $1`

// OpportunityRepository implements repository.OpportunityRepository using PostgreSQL.
type OpportunityRepository struct {
	pool database.DBTX
}

// NewOpportunityRepository creates a new PostgreSQL-backed opportunity repository.
func NewOpportunityRepository(pool database.DBTX) *OpportunityRepository {
	return &OpportunityRepository{pool: pool}
}

// SnapshotByTenant returns the set of opportunity IDs already stored for a tenant.
func (r *OpportunityRepository) SnapshotByTenant(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	query := `SELECT opportunity_id FROM opportunities WHERE tenant_id = $1`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("snapshot opportunities: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan opportunity id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunity id rows: %w", err)
	}

	return ids, nil
}

// BulkUpsert writes new opportunities in a single transaction using one
// batched round trip.
func (r *OpportunityRepository) BulkUpsert(ctx context.Context, opportunities []domain.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, o := range opportunities {
		batch.Queue(upsertOpportunityQuery,
			o.OpportunityID, o.ContactID, o.Name, o.Phone, o.TenantID, o.MonetaryValue, o.CreatedAt, o.UpdatedAt)
	}

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("upsert opportunities: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// BulkUpdate rewrites existing opportunities in a single transaction.
func (r *OpportunityRepository) BulkUpdate(ctx context.Context, opportunities []domain.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, o := range opportunities {
		batch.Queue(updateOpportunityQuery,
			o.OpportunityID, o.ContactID, o.Name, o.Phone, o.MonetaryValue, o.CreatedAt, o.UpdatedAt)
	}

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("update opportunities: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
