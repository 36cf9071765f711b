package crm

import (
	"bytes"
	"context"
	"encoding/json"
)

// ContactPager walks the contact search endpoint page by page. The cursor is
// the searchAfter value of the last record on the previous page; the stream
// ends on the first empty page, or when the last record carries no cursor to
// request the next one.
type ContactPager struct {
	client      *Client
	accessToken string
	tenantID    string
	cursor      json.RawMessage
	done        bool
}

// Contacts returns a pager over all contacts for a tenant.
func (c *Client) Contacts(accessToken, tenantID string) *ContactPager {
	return &ContactPager{client: c, accessToken: accessToken, tenantID: tenantID}
}

// Next fetches the next page. It returns nil records once the stream is
// exhausted.
func (p *ContactPager) Next(ctx context.Context) ([]ContactRecord, error) {
	if p.done {
		return nil, nil
	}

	page, err := p.client.searchContacts(ctx, p.accessToken, p.tenantID, p.cursor)
	if err != nil {
		return nil, err
	}
	if len(page.Contacts) == 0 {
		p.done = true
		return nil, nil
	}

	cursor := page.Contacts[len(page.Contacts)-1].SearchAfter
	if emptyCursor(cursor) {
		// No cursor means no next page. Requesting again without one would
		// restart at page one and loop forever.
		p.done = true
	} else {
		p.cursor = cursor
	}
	return page.Contacts, nil
}

// emptyCursor reports whether a searchAfter value cannot address a next page.
func emptyCursor(c json.RawMessage) bool {
	c = bytes.TrimSpace(c)
	switch string(c) {
	case "", "null", "[]", `""`:
		return true
	}
	return false
}

// OpportunityPager walks the opportunity search endpoint page by page. The
// cursor is the startAfter/startAfterId pair from the response meta; the
// stream ends when either comes back zero.
type OpportunityPager struct {
	client       *Client
	accessToken  string
	tenantID     string
	startAfter   int64
	startAfterID string
	done         bool
}

// Opportunities returns a pager over all opportunities for a tenant.
func (c *Client) Opportunities(accessToken, tenantID string) *OpportunityPager {
	return &OpportunityPager{client: c, accessToken: accessToken, tenantID: tenantID}
}

// Next fetches the next page. It returns nil records once the stream is
// exhausted.
func (p *OpportunityPager) Next(ctx context.Context) ([]OpportunityRecord, error) {
	if p.done {
		return nil, nil
	}

	page, err := p.client.searchOpportunities(ctx, p.accessToken, p.tenantID, p.startAfter, p.startAfterID)
	if err != nil {
		return nil, err
	}

	if page.Meta.StartAfter == 0 || page.Meta.StartAfterID == "" {
		p.done = true
	} else {
		p.startAfter = page.Meta.StartAfter
		p.startAfterID = page.Meta.StartAfterID
	}

	if len(page.Opportunities) == 0 {
		p.done = true
		return nil, nil
	}
	return page.Opportunities, nil
}
