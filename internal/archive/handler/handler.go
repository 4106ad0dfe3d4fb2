package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"entrypass/internal/archive/models"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/httputil"
	"entrypass/pkg/requestcontext"
)

// Service is the archive surface exposed over HTTP.
type Service interface {
	GetSnapshot(ctx context.Context, snapshotID id.SnapshotID) (*models.Snapshot, error)
	CleanupExpired(ctx context.Context, policy models.RetentionPolicy) (models.CleanupResult, error)
	CleanupOrphans(ctx context.Context) (models.OrphanResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the traveler-facing snapshot read.
func (h *Handler) Register(r chi.Router) {
	r.Get("/snapshots/{snapshotID}", h.HandleGet)
}

// RegisterAdmin mounts the maintenance endpoints. Callers guard them.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/snapshots/cleanup", h.HandleCleanup)
	r.Post("/snapshots/orphans", h.HandleOrphans)
}

// HandleGet handles GET /snapshots/{snapshotID}. Snapshots of other users
// are reported as not found.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snapshotID, err := id.ParseSnapshotID(chi.URLParam(r, "snapshotID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, err := h.service.GetSnapshot(ctx, snapshotID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if snap.UserID != requestcontext.UserID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "snapshot not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleCleanup handles POST /admin/snapshots/cleanup.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CleanupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.CleanupExpired(ctx, req.Policy())
	if err != nil {
		h.logger.ErrorContext(ctx, "snapshot cleanup failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "snapshot cleanup finished",
		"request_id", requestID,
		"deleted", res.DeletedCount,
		"freed_bytes", res.FreedBytes,
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleOrphans handles POST /admin/snapshots/orphans.
func (h *Handler) HandleOrphans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.CleanupOrphans(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "orphan cleanup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// CleanupRequest is the body of POST /admin/snapshots/cleanup.
type CleanupRequest struct {
	MaxAgeDays    int  `json:"maxAgeDays"`
	MaxCount      int  `json:"maxCount"`
	KeepCompleted bool `json:"keepCompleted"`
}

func (r *CleanupRequest) Normalize() {}

func (r *CleanupRequest) Validate() error {
	return r.Policy().Validate()
}

func (r *CleanupRequest) Policy() models.RetentionPolicy {
	return models.RetentionPolicy{
		MaxAgeDays:    r.MaxAgeDays,
		MaxCount:      r.MaxCount,
		KeepCompleted: r.KeepCompleted,
	}
}
