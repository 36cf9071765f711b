package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/crmsync/internal/crm"
	"github.com/utafrali/crmsync/internal/domain"
	apperrors "github.com/utafrali/crmsync/pkg/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTokenService(t *testing.T) (*TokenService, *mockCredentialRepo, *mockOAuthClient) {
	t.Helper()
	creds := &mockCredentialRepo{}
	oauth := &mockOAuthClient{}
	svc := NewTokenService(creds, oauth, discardLogger())
	return svc, creds, oauth
}

func TestValidToken_FreshCredential(t *testing.T) {
	svc, creds, oauth := newTokenService(t)

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	creds.On("GetByTenant", mock.Anything, "loc-1").Return(&domain.Credential{
		TenantID:    "loc-1",
		AccessToken: "access-1",
		ExpiresAt:   now.Add(time.Hour),
	}, nil)

	token, err := svc.ValidToken(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	oauth.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything)
	creds.AssertExpectations(t)
}

func TestValidToken_ExpiredRefreshes(t *testing.T) {
	svc, creds, oauth := newTokenService(t)

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	creds.On("GetByTenant", mock.Anything, "loc-1").Return(&domain.Credential{
		TenantID:     "loc-1",
		AccessToken:  "stale",
		RefreshToken: "refresh-old",
		ExpiresAt:    now, // expires exactly now: expired
	}, nil)
	oauth.On("RefreshToken", mock.Anything, "refresh-old").Return(&crm.Token{
		AccessToken:  "access-new",
		RefreshToken: "refresh-new",
		ExpiresIn:    3600,
	}, nil)
	creds.On("UpdateTokens", mock.Anything, "loc-1", "access-new", "refresh-new", now.Add(time.Hour)).Return(nil)

	token, err := svc.ValidToken(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "access-new", token)

	creds.AssertExpectations(t)
	oauth.AssertExpectations(t)
}

func TestValidToken_KeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	svc, creds, oauth := newTokenService(t)

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	creds.On("GetByTenant", mock.Anything, "loc-1").Return(&domain.Credential{
		TenantID:     "loc-1",
		RefreshToken: "refresh-old",
		ExpiresAt:    now.Add(-time.Minute),
	}, nil)
	oauth.On("RefreshToken", mock.Anything, "refresh-old").Return(&crm.Token{
		AccessToken: "access-new",
		ExpiresIn:   3600,
	}, nil)
	creds.On("UpdateTokens", mock.Anything, "loc-1", "access-new", "refresh-old", now.Add(time.Hour)).Return(nil)

	_, err := svc.ValidToken(context.Background(), "loc-1")
	require.NoError(t, err)
	creds.AssertExpectations(t)
}

func TestValidToken_MissingCredential(t *testing.T) {
	svc, creds, _ := newTokenService(t)

	creds.On("GetByTenant", mock.Anything, "unknown").Return(nil, apperrors.ErrNotFound)

	_, err := svc.ValidToken(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrCredentialMissing)
}

func TestValidToken_RefreshFailure(t *testing.T) {
	svc, creds, oauth := newTokenService(t)

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	creds.On("GetByTenant", mock.Anything, "loc-1").Return(&domain.Credential{
		TenantID:     "loc-1",
		RefreshToken: "refresh-old",
		ExpiresAt:    now.Add(-time.Hour),
	}, nil)
	oauth.On("RefreshToken", mock.Anything, "refresh-old").Return(nil, errors.New("invalid_grant"))

	_, err := svc.ValidToken(context.Background(), "loc-1")
	assert.ErrorIs(t, err, ErrTokenRefreshFailed)

	creds.AssertNotCalled(t, "UpdateTokens", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConnect_StoresCredential(t *testing.T) {
	svc, creds, oauth := newTokenService(t)

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	oauth.On("ExchangeCode", mock.Anything, "code-1").Return(&crm.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    86400,
		LocationID:   "loc-1",
	}, nil)
	creds.On("Upsert", mock.Anything, mock.MatchedBy(func(c *domain.Credential) bool {
		return c.TenantID == "loc-1" &&
			c.AccessToken == "access-1" &&
			c.RefreshToken == "refresh-1" &&
			c.ExpiresAt.Equal(now.Add(24*time.Hour))
	})).Return(nil)

	cred, err := svc.Connect(context.Background(), "loc-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", cred.TenantID)

	creds.AssertExpectations(t)
}

func TestConnect_LocationMismatch(t *testing.T) {
	svc, creds, oauth := newTokenService(t)

	oauth.On("ExchangeCode", mock.Anything, "code-1").Return(&crm.Token{
		AccessToken: "access-1",
		LocationID:  "other-loc",
	}, nil)

	_, err := svc.Connect(context.Background(), "loc-1", "code-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	creds.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestConnect_UpstreamFailure(t *testing.T) {
	svc, _, oauth := newTokenService(t)

	oauth.On("ExchangeCode", mock.Anything, "bad-code").
		Return(nil, crm.ErrRequestFailed)

	_, err := svc.Connect(context.Background(), "loc-1", "bad-code")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestRegister(t *testing.T) {
	svc, creds, _ := newTokenService(t)

	expiresAt := time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC)
	creds.On("Upsert", mock.Anything, mock.MatchedBy(func(c *domain.Credential) bool {
		return c.TenantID == "loc-1" && c.AccessToken == "a" && c.RefreshToken == "r" && c.ExpiresAt.Equal(expiresAt)
	})).Return(nil)

	cred, err := svc.Register(context.Background(), "loc-1", "a", "r", expiresAt)
	require.NoError(t, err)
	assert.Equal(t, "loc-1", cred.TenantID)
	creds.AssertExpectations(t)
}
