package crm

import "encoding/json"

// Token is the payload returned by the CRM OAuth token endpoint for both the
// authorization-code exchange and the refresh grant.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	LocationID   string `json:"locationId"`
	UserType     string `json:"userType"`
}

// ContactRecord is a single contact as returned by POST /contacts/search.
// Names arrive pre-lowercased; SearchAfter is the opaque cursor the next page
// request must echo back.
type ContactRecord struct {
	ID                 string          `json:"id"`
	FirstNameLowerCase string          `json:"firstNameLowerCase"`
	LastNameLowerCase  string          `json:"lastNameLowerCase"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	DateAdded          string          `json:"dateAdded"`
	DateUpdated        string          `json:"dateUpdated"`
	SearchAfter        json.RawMessage `json:"searchAfter"`
}

// OpportunityRecord is a single opportunity as returned by GET /opportunities/search.
// The owning contact arrives as top-level contactId/phone fields.
type OpportunityRecord struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	MonetaryValue float64 `json:"monetaryValue"`
	ContactID     string  `json:"contactId"`
	Phone         string  `json:"phone"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

type contactSearchRequest struct {
	LocationID  string          `json:"locationId"`
	PageLimit   int             `json:"pageLimit"`
	SearchAfter json.RawMessage `json:"searchAfter,omitempty"`
}

type contactSearchResponse struct {
	Contacts []ContactRecord `json:"contacts"`
	Total    int             `json:"total"`
}

type opportunitySearchResponse struct {
	Opportunities []OpportunityRecord `json:"opportunities"`
	Meta          pageMeta            `json:"meta"`
}

// pageMeta carries the opportunity pagination cursor. The stream is exhausted
// when either field comes back zero.
type pageMeta struct {
	StartAfter   int64  `json:"startAfter"`
	StartAfterID string `json:"startAfterId"`
}
