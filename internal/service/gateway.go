package service

import (
	"context"

	"github.com/utafrali/crmsync/internal/crm"
)

// ContactStream yields pages of contact records. A nil page means the stream
// is exhausted.
type ContactStream interface {
	Next(ctx context.Context) ([]crm.ContactRecord, error)
}

// OpportunityStream yields pages of opportunity records. A nil page means the
// stream is exhausted.
type OpportunityStream interface {
	Next(ctx context.Context) ([]crm.OpportunityRecord, error)
}

// CRMGateway hands out per-tenant page streams over the upstream CRM API.
type CRMGateway interface {
	ContactPages(accessToken, tenantID string) ContactStream
	OpportunityPages(accessToken, tenantID string) OpportunityStream
}

type crmGateway struct {
	client *crm.Client
}

// NewCRMGateway adapts a crm.Client to the CRMGateway interface.
func NewCRMGateway(client *crm.Client) CRMGateway {
	return crmGateway{client: client}
}

func (g crmGateway) ContactPages(accessToken, tenantID string) ContactStream {
	return g.client.Contacts(accessToken, tenantID)
}

func (g crmGateway) OpportunityPages(accessToken, tenantID string) OpportunityStream {
	return g.client.Opportunities(accessToken, tenantID)
}
