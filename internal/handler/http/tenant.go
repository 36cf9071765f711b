package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/crmsync/internal/domain"
	"github.com/utafrali/crmsync/pkg/httputil"
	"github.com/utafrali/crmsync/pkg/validator"
)

// credentialManager is the slice of the token service the handlers use.
type credentialManager interface {
	Connect(ctx context.Context, tenantID, code string) (*domain.Credential, error)
	Register(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) (*domain.Credential, error)
}

// TenantHandler handles tenant credential administration.
type TenantHandler struct {
	tokens credentialManager
	logger *slog.Logger
}

// NewTenantHandler creates a new tenant HTTP handler.
func NewTenantHandler(tokens credentialManager, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{
		tokens: tokens,
		logger: logger,
	}
}

// --- Request DTOs ---

// RegisterTenantRequest is the JSON request body for registering a tenant
// with an existing token pair.
type RegisterTenantRequest struct {
	TenantID     string `json:"tenant_id" validate:"required"`
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
	ExpiresIn    int64  `json:"expires_in" validate:"required,gt=0"`
}

// ExchangeCodeRequest is the JSON request body for redeeming an OAuth
// authorization code.
type ExchangeCodeRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// --- Handlers ---

// RegisterTenant handles POST /api/v1/tenants
func (h *TenantHandler) RegisterTenant(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RegisterTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	expiresAt := time.Now().UTC().Add(time.Duration(req.ExpiresIn) * time.Second)
	cred, err := h.tokens.Register(r.Context(), req.TenantID, req.AccessToken, req.RefreshToken, expiresAt)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "tenant registered",
		slog.String("tenant_id", cred.TenantID),
	)
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: cred})
}

// ExchangeCode handles POST /api/v1/oauth/exchange
func (h *TenantHandler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ExchangeCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cred, err := h.tokens.Connect(r.Context(), req.TenantID, req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: cred})
}
