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
	apperrors "github.com/utafrali/crmsync/pkg/errors"
)

// oauthClient is the slice of the CRM client the token service needs.
type oauthClient interface {
	ExchangeCode(ctx context.Context, code string) (*crm.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*crm.Token, error)
}

// TokenService manages per-tenant OAuth credentials and keeps access tokens
// fresh.
type TokenService struct {
	creds  repository.CredentialRepository
	oauth  oauthClient
	logger *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(creds repository.CredentialRepository, oauth oauthClient, logger *slog.Logger) *TokenService {
	return &TokenService{
		creds:  creds,
		oauth:  oauth,
		logger: logger,
		now:    time.Now,
	}
}

// ValidToken returns a usable access token for the tenant, refreshing the
// stored credential against the CRM when it has expired. A token expiring
// exactly now counts as expired.
func (s *TokenService) ValidToken(ctx context.Context, tenantID string) (string, error) {
	cred, err := s.creds.GetByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", fmt.Errorf("%w: tenant %s", ErrCredentialMissing, tenantID)
		}
		return "", fmt.Errorf("load credential: %w", err)
	}

	now := s.now().UTC()
	if !cred.Expired(now) {
		return cred.AccessToken, nil
	}

	s.logger.InfoContext(ctx, "refreshing expired access token",
		slog.String("tenant_id", tenantID),
	)

	token, err := s.oauth.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		tokenRefreshes.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: tenant %s: %v", ErrTokenRefreshFailed, tenantID, err)
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// The refresh grant may omit a new refresh token; keep the old one.
		refreshToken = cred.RefreshToken
	}

	expiresAt := now.Add(time.Duration(token.ExpiresIn) * time.Second)
	if err := s.creds.UpdateTokens(ctx, tenantID, token.AccessToken, refreshToken, expiresAt); err != nil {
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}

	tokenRefreshes.WithLabelValues("success").Inc()
	return token.AccessToken, nil
}

// Connect redeems an OAuth authorization code and stores the resulting
// credential. The code must have been issued for the given tenant.
func (s *TokenService) Connect(ctx context.Context, tenantID, code string) (*domain.Credential, error) {
	token, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		if errors.Is(err, crm.ErrRequestFailed) || errors.Is(err, crm.ErrMalformedResponse) {
			return nil, apperrors.Upstream("oauth code exchange failed")
		}
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	if token.LocationID != tenantID {
		return nil, apperrors.InvalidInput("authorization code was issued for a different location")
	}

	now := s.now().UTC()
	cred := &domain.Credential{
		TenantID:     tenantID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(token.ExpiresIn) * time.Second),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.logger.InfoContext(ctx, "tenant connected",
		slog.String("tenant_id", tenantID),
		slog.Time("expires_at", cred.ExpiresAt),
	)
	return cred, nil
}

// Register stores a credential supplied directly by an operator.
func (s *TokenService) Register(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) (*domain.Credential, error) {
	now := s.now().UTC()
	cred := &domain.Credential{
		TenantID:     tenantID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	return cred, nil
}
