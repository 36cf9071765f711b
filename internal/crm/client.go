package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/crmsync/pkg/httpclient"
)

const (
	// statusOriginError is the Cloudflare status the CRM edge returns under
	// load. It is the only status worth retrying at this layer.
	statusOriginError = 520

	max520Retries  = 3
	retry520Wait   = 5 * time.Second
	requestTimeout = 30 * time.Second
)

// Config holds CRM API client settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	APIVersion   string
	PageSize     int
}

// Client talks to the upstream CRM API. Search traffic goes through a plain
// HTTP client so this package controls the 520 retry policy itself; the OAuth
// token endpoint sits behind a circuit breaker because every tenant's sync
// funnels through it.
type Client struct {
	cfg    Config
	search *httpclient.Client
	token  *httpclient.CircuitBreakerClient
	logger *slog.Logger

	// wait is swapped out in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient creates a CRM API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	searchCfg := httpclient.DefaultConfig()
	searchCfg.Timeout = requestTimeout
	searchCfg.MaxRetries = 0 // 520 handling below is the only retry policy

	tokenClient := httpclient.New(httpclient.Config{
		Timeout:         requestTimeout,
		MaxRetries:      0,
		MaxConnsPerHost: 10,
	})

	return &Client{
		cfg:    cfg,
		search: httpclient.New(searchCfg),
		token:  httpclient.NewCircuitBreakerClient(tokenClient, httpclient.DefaultCircuitBreakerConfig("crm_oauth"), logger),
		logger: logger,
		wait:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExchangeCode redeems an OAuth authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	return c.requestToken(ctx, url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"user_type":     {"Location"},
	})
}

// RefreshToken exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return c.requestToken(ctx, url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"user_type":     {"Location"},
	})
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	resp, err := c.token.Post(ctx, c.cfg.BaseURL+"/oauth/token",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("request oauth token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: oauth token status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: decode oauth token: %v", ErrMalformedResponse, err)
	}
	return &token, nil
}

// searchContacts fetches one page of contacts. A nil cursor requests the
// first page.
func (c *Client) searchContacts(ctx context.Context, accessToken, tenantID string, cursor json.RawMessage) (*contactSearchResponse, error) {
	body, err := json.Marshal(contactSearchRequest{
		LocationID:  tenantID,
		PageLimit:   c.cfg.PageSize,
		SearchAfter: cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal contact search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/contacts/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create contact search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var page contactSearchResponse
	if err := c.doSearch(ctx, req, accessToken, &page); err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return &page, nil
}

// searchOpportunities fetches one page of opportunities. Zero-valued cursor
// fields request the first page.
func (c *Client) searchOpportunities(ctx context.Context, accessToken, tenantID string, startAfter int64, startAfterID string) (*opportunitySearchResponse, error) {
	q := url.Values{
		"location_id": {tenantID},
		"limit":       {strconv.Itoa(c.cfg.PageSize)},
	}
	if startAfter > 0 {
		q.Set("startAfter", strconv.FormatInt(startAfter, 10))
	}
	if startAfterID != "" {
		q.Set("startAfterId", startAfterID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/opportunities/search?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create opportunity search request: %w", err)
	}

	var page opportunitySearchResponse
	if err := c.doSearch(ctx, req, accessToken, &page); err != nil {
		return nil, fmt.Errorf("search opportunities: %w", err)
	}
	return &page, nil
}

// doSearch executes a search request, retrying 520 responses up to
// max520Retries times. Every other non-200 status is terminal.
func (c *Client) doSearch(ctx context.Context, req *http.Request, accessToken string, out any) error {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Version", c.cfg.APIVersion)
	req.Header.Set("Accept", "application/json")

	var bodySnapshot []byte
	if req.Body != nil && req.GetBody != nil {
		// Keep the body replayable across retries.
		rc, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("snapshot request body: %w", err)
		}
		bodySnapshot, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("snapshot request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if bodySnapshot != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodySnapshot))
		}

		resp, err := c.search.Do(ctx, req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode == statusOriginError {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if attempt >= max520Retries {
				return fmt.Errorf("%w: status 520 after %d attempts", ErrRequestFailed, attempt+1)
			}
			c.logger.WarnContext(ctx, "crm origin error, retrying",
				slog.String("url", req.URL.Path),
				slog.Int("attempt", attempt+1),
			)
			if err := c.wait(ctx, retry520Wait); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: decode body: %v", ErrMalformedResponse, err)
		}
		return nil
	}
}
