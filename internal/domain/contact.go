package domain

import "time"

// Contact is the local mirror of a CRM contact record.
//
// OpportunityTotal is nil until the aggregation pass runs for the tenant;
// contacts without any opportunities keep a nil total. The sync writers never
// touch this column.
type Contact struct {
	ContactID        string     `json:"contact_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	TenantID         string     `json:"tenant_id"`
	OpportunityTotal *float64   `json:"opportunity_total,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Opportunity is the local mirror of a CRM opportunity record.
type Opportunity struct {
	OpportunityID string     `json:"opportunity_id"`
	ContactID     string     `json:"contact_id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	TenantID      string     `json:"tenant_id"`
	MonetaryValue float64    `json:"monetary_value"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}
