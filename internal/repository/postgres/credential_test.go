package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/crmsync/internal/domain"
	"github.com/utafrali/crmsync/pkg/database"
	apperrors "github.com/utafrali/crmsync/pkg/errors"
)

func newCredentialRepo(t *testing.T) (*CredentialRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewCredentialRepository(mock), mock
}

func TestCredentialRepository_GetByTenant(t *testing.T) {
	repo, mock := newCredentialRepo(t)
	defer mock.ExpectationsWereMet()

	now := time.Now().UTC()
	expiresAt := now.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM crm_credentials").
		WithArgs("loc-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"tenant_id", "access_token", "refresh_token", "expires_at", "created_at", "updated_at",
		}).AddRow("loc-1", "access-1", "refresh-1", expiresAt, now, now))

	cred, err := repo.GetByTenant(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", cred.TenantID)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, expiresAt, cred.ExpiresAt)
}

func TestCredentialRepository_GetByTenant_NotFound(t *testing.T) {
	repo, mock := newCredentialRepo(t)
	defer mock.ExpectationsWereMet()

	mock.ExpectQuery("SELECT (.+) FROM crm_credentials").
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByTenant(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCredentialRepository_ListTenantIDs(t *testing.T) {
	repo, mock := newCredentialRepo(t)
	defer mock.ExpectationsWereMet()

	mock.ExpectQuery("SELECT tenant_id FROM crm_credentials").
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).
			AddRow("loc-1").
			AddRow("loc-2"))

	ids, err := repo.ListTenantIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"loc-1", "loc-2"}, ids)
}

func TestCredentialRepository_ListTenantIDs_Empty(t *testing.T) {
	repo, mock := newCredentialRepo(t)
	defer mock.ExpectationsWereMet()

	mock.ExpectQuery("SELECT tenant_id FROM crm_credentials").
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}))

	ids, err := repo.ListTenantIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
}

func TestCredentialRepository_Upsert(t *testing.T) {
	repo, mock := newCredentialRepo(t)
	defer mock.ExpectationsWereMet()

	expiresAt := time.Now().UTC().Add(24 * time.Hour)

	mock.ExpectExec("INSERT INTO crm_credentials").
		WithArgs("loc-1", "access-1", "refresh-1", expiresAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(context.Background(), &domain.Credential{
		TenantID:     "loc-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)
}

func TestCredentialRepository_UpdateTokens(t *testing.T) {
	repo, mock := newCredentialRepo(t)
	defer mock.ExpectationsWereMet()

	expiresAt := time.Now().UTC().Add(24 * time.Hour)

	mock.ExpectExec("UPDATE crm_credentials").
		WithArgs("loc-1", "access-2", "refresh-2", expiresAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateTokens(context.Background(), "loc-1", "access-2", "refresh-2", expiresAt)
	require.NoError(t, err)
}

func TestCredentialRepository_UpdateTokens_NotFound(t *testing.T) {
	repo, mock := newCredentialRepo(t)
	defer mock.ExpectationsWereMet()

	expiresAt := time.Now().UTC()

	mock.ExpectExec("UPDATE crm_credentials").
		WithArgs("missing", "a", "r", expiresAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateTokens(context.Background(), "missing", "a", "r", expiresAt)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
