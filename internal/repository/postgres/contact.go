package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/crmsync/internal/domain"
	"github.com/utafrali/crmsync/pkg/database"
)

const upsertContactQuery = `
	INSERT INTO contacts (contact_id, first_name, last_name, email, phone, tenant_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (contact_id) DO UPDATE SET
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		email = EXCLUDED.email,
		phone = EXCLUDED.phone,
		tenant_id = EXCLUDED.tenant_id,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at`

const updateContactQuery = `
	UPDATE contacts
	SET first_name = $2, last_name = $3, email = $4, phone = $5, created_at = $6, updated_at = $7
	WHERE contact_id = $1`

// The subquery and the EXISTS filter share the same tenant scope, so contacts
// without any opportunity keep their previous total untouched.
const updateOpportunityTotalsQuery = `
	UPDATE contacts
	SET opportunity_total = (
		SELECT COALESCE(SUM(o.monetary_value), 0)
		FROM opportunities o
		WHERE o.contact_id = contacts.contact_id
		  AND o.tenant_id = $1
	)
	WHERE contacts.tenant_id = $1
	  AND EXISTS (
		SELECT 1
		FROM opportunities o
		WHERE o.contact_id = contacts.contact_id
		  AND o.tenant_id = $1
	  )`

// ContactRepository implements repository.ContactRepository using PostgreSQL.
type ContactRepository struct {
	pool database.DBTX
}

// NewContactRepository creates a new PostgreSQL-backed contact repository.
func NewContactRepository(pool database.DBTX) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// SnapshotByTenant returns the set of contact IDs already stored for a tenant.
func (r *ContactRepository) SnapshotByTenant(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	query := `SELECT contact_id FROM contacts WHERE tenant_id = $1`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("snapshot contacts: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contact id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact id rows: %w", err)
	}

	return ids, nil
}

// BulkUpsert writes new contacts in a single transaction using one batched
// round trip. Conflicting rows are overwritten except for opportunity_total,
// which only the aggregation step maintains.
func (r *ContactRepository) BulkUpsert(ctx context.Context, contacts []domain.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range contacts {
		batch.Queue(upsertContactQuery,
			c.ContactID, c.FirstName, c.LastName, c.Email, c.Phone, c.TenantID, c.CreatedAt, c.UpdatedAt)
	}

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("upsert contacts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// BulkUpdate rewrites existing contacts in a single transaction.
func (r *ContactRepository) BulkUpdate(ctx context.Context, contacts []domain.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range contacts {
		batch.Queue(updateContactQuery,
			c.ContactID, c.FirstName, c.LastName, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt)
	}

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("update contacts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// UpdateOpportunityTotals recomputes opportunity totals for every contact of a
// tenant that has at least one opportunity.
func (r *ContactRepository) UpdateOpportunityTotals(ctx context.Context, tenantID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, updateOpportunityTotalsQuery, tenantID)
	if err != nil {
		return 0, fmt.Errorf("update opportunity totals: %w", err)
	}
	return ct.RowsAffected(), nil
}

// sendBatch flushes a batch through a transaction and checks every queued
// statement for errors.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}
