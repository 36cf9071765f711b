package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/crmsync/internal/crm"
	"github.com/utafrali/crmsync/internal/domain"
)

// --- Repository mocks ---

type mockCredentialRepo struct {
	mock.Mock
}

func (m *mockCredentialRepo) GetByTenant(ctx context.Context, tenantID string) (*domain.Credential, error) {
	args := m.Called(ctx, tenantID)
	if cred := args.Get(0); cred != nil {
		return cred.(*domain.Credential), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCredentialRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCredentialRepo) Upsert(ctx context.Context, cred *domain.Credential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *mockCredentialRepo) UpdateTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error {
	return m.Called(ctx, tenantID, accessToken, refreshToken, expiresAt).Error(0)
}

type mockContactRepo struct {
	mock.Mock
}

func (m *mockContactRepo) SnapshotByTenant(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	args := m.Called(ctx, tenantID)
	if ids := args.Get(0); ids != nil {
		return ids.(map[string]struct{}), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockContactRepo) BulkUpsert(ctx context.Context, contacts []domain.Contact) error {
	return m.Called(ctx, contacts).Error(0)
}

func (m *mockContactRepo) BulkUpdate(ctx context.Context, contacts []domain.Contact) error {
	return m.Called(ctx, contacts).Error(0)
}

func (m *mockContactRepo) UpdateOpportunityTotals(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

type mockOpportunityRepo struct {
	mock.Mock
}

func (m *mockOpportunityRepo) SnapshotByTenant(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	args := m.Called(ctx, tenantID)
	if ids := args.Get(0); ids != nil {
		return ids.(map[string]struct{}), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOpportunityRepo) BulkUpsert(ctx context.Context, opportunities []domain.Opportunity) error {
	return m.Called(ctx, opportunities).Error(0)
}

func (m *mockOpportunityRepo) BulkUpdate(ctx context.Context, opportunities []domain.Opportunity) error {
	return m.Called(ctx, opportunities).Error(0)
}

// --- CRM client mocks ---

type mockOAuthClient struct {
	mock.Mock
}

func (m *mockOAuthClient) ExchangeCode(ctx context.Context, code string) (*crm.Token, error) {
	args := m.Called(ctx, code)
	if token := args.Get(0); token != nil {
		return token.(*crm.Token), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOAuthClient) RefreshToken(ctx context.Context, refreshToken string) (*crm.Token, error) {
	args := m.Called(ctx, refreshToken)
	if token := args.Get(0); token != nil {
		return token.(*crm.Token), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTokenProvider struct {
	mock.Mock
}

func (m *mockTokenProvider) ValidToken(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

// --- Gateway fakes ---

type fakeContactStream struct {
	pages [][]crm.ContactRecord
	err   error
}

func (s *fakeContactStream) Next(ctx context.Context) ([]crm.ContactRecord, error) {
	if len(s.pages) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, nil
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

type fakeOpportunityStream struct {
	pages [][]crm.OpportunityRecord
	err   error
}

func (s *fakeOpportunityStream) Next(ctx context.Context) ([]crm.OpportunityRecord, error) {
	if len(s.pages) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, nil
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

type fakeGateway struct {
	contacts      map[string]*fakeContactStream
	opportunities map[string]*fakeOpportunityStream
	tokensSeen    map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		contacts:      make(map[string]*fakeContactStream),
		opportunities: make(map[string]*fakeOpportunityStream),
		tokensSeen:    make(map[string]string),
	}
}

func (g *fakeGateway) ContactPages(accessToken, tenantID string) ContactStream {
	g.tokensSeen[tenantID] = accessToken
	if s, ok := g.contacts[tenantID]; ok {
		return s
	}
	return &fakeContactStream{}
}

func (g *fakeGateway) OpportunityPages(accessToken, tenantID string) OpportunityStream {
	g.tokensSeen[tenantID] = accessToken
	if s, ok := g.opportunities[tenantID]; ok {
		return s
	}
	return &fakeOpportunityStream{}
}

// --- Event publisher fake ---

type recordingPublisher struct {
	contactsSynced      int
	opportunitiesSynced int
	aggregated          int
	lastSyncResult      *SyncResult
	lastAggResult       *AggregateResult
}

func (p *recordingPublisher) PublishContactsSynced(ctx context.Context, tenantID string, result *SyncResult) error {
	p.contactsSynced++
	p.lastSyncResult = result
	return nil
}

func (p *recordingPublisher) PublishOpportunitiesSynced(ctx context.Context, tenantID string, result *SyncResult) error {
	p.opportunitiesSynced++
	p.lastSyncResult = result
	return nil
}

func (p *recordingPublisher) PublishContactsAggregated(ctx context.Context, tenantID string, result *AggregateResult) error {
	p.aggregated++
	p.lastAggResult = result
	return nil
}
