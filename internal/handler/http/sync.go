package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/crmsync/internal/service"
	"github.com/utafrali/crmsync/internal/worker"
	apperrors "github.com/utafrali/crmsync/pkg/errors"
	"github.com/utafrali/crmsync/pkg/httputil"
)

// jobQueue is the slice of the worker pool the handlers use.
type jobQueue interface {
	Enqueue(name string, fn worker.JobFunc) (uuid.UUID, error)
	Status(id uuid.UUID) (*worker.Job, bool)
}

// syncRunner triggers sync runs.
type syncRunner interface {
	SyncContacts(ctx context.Context, tenantID string) (*service.SyncResult, error)
	SyncOpportunities(ctx context.Context, tenantID string) (*service.SyncResult, error)
}

// aggregateRunner triggers aggregation runs.
type aggregateRunner interface {
	Aggregate(ctx context.Context, tenantID string) (*service.AggregateResult, error)
}

// SyncHandler handles HTTP requests that trigger sync operations.
type SyncHandler struct {
	pool       jobQueue
	sync       syncRunner
	aggregator aggregateRunner
	logger     *slog.Logger
}

// NewSyncHandler creates a new sync trigger handler.
func NewSyncHandler(pool jobQueue, sync syncRunner, aggregator aggregateRunner, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		pool:       pool,
		sync:       sync,
		aggregator: aggregator,
		logger:     logger,
	}
}

// JobAcceptedResponse is returned by the trigger endpoints.
type JobAcceptedResponse struct {
	JobID    string `json:"job_id"`
	Job      string `json:"job"`
	TenantID string `json:"tenant_id,omitempty"`
}

// TriggerContactSync handles POST /api/v1/sync/contacts
func (h *SyncHandler) TriggerContactSync(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	h.accept(w, r, "contact-sync", tenantID, func(ctx context.Context) error {
		_, err := h.sync.SyncContacts(ctx, tenantID)
		return err
	})
}

// TriggerOpportunitySync handles POST /api/v1/sync/opportunities
func (h *SyncHandler) TriggerOpportunitySync(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	h.accept(w, r, "opportunity-sync", tenantID, func(ctx context.Context) error {
		_, err := h.sync.SyncOpportunities(ctx, tenantID)
		return err
	})
}

// TriggerFullSync handles POST /api/v1/sync/all
func (h *SyncHandler) TriggerFullSync(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	h.accept(w, r, "full-sync", tenantID, func(ctx context.Context) error {
		if _, err := h.sync.SyncContacts(ctx, tenantID); err != nil {
			return err
		}
		_, err := h.sync.SyncOpportunities(ctx, tenantID)
		return err
	})
}

// TriggerAggregation handles POST /api/v1/sync/aggregate
func (h *SyncHandler) TriggerAggregation(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	h.accept(w, r, "aggregate-opportunity-totals", tenantID, func(ctx context.Context) error {
		_, err := h.aggregator.Aggregate(ctx, tenantID)
		return err
	})
}

func (h *SyncHandler) accept(w http.ResponseWriter, r *http.Request, name, tenantID string, fn worker.JobFunc) {
	id, err := h.pool.Enqueue(name, fn)
	if err != nil {
		httputil.WriteError(w, r, apperrors.Wrap(err, "enqueue "+name), h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "sync job accepted",
		slog.String("job", name),
		slog.String("job_id", id.String()),
		slog.String("tenant_id", tenantID),
	)

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: JobAcceptedResponse{
		JobID:    id.String(),
		Job:      name,
		TenantID: tenantID,
	}})
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	job, found := h.pool.Status(id)
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("job", id.String()), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: job})
}
