// Package handler exposes the traveler-facing entry endpoints: creating an
// entry, saving traveler data, submitting, reading the pack and archiving.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	archivemodels "entrypass/internal/archive/models"
	"entrypass/internal/entry/models"
	"entrypass/internal/orchestrator"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/httputil"
	"entrypass/pkg/requestcontext"
)

// Entries is the part of the entry service the handler reads directly.
type Entries interface {
	EnsureEntryInfo(ctx context.Context, key models.EntryInfoKey) (*models.EntryInfo, error)
	GetEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error)
}

// Orchestrator runs the multi-step operations.
type Orchestrator interface {
	Prepare(ctx context.Context, entryInfoID id.EntryInfoID, data traveler.Data) (orchestrator.PrepareResult, error)
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (orchestrator.SubmitResult, error)
	FinalizeRecent(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryPack, bool, error)
	Archive(ctx context.Context, entryInfoID id.EntryInfoID, reason string) (*archivemodels.Snapshot, error)
}

type Handler struct {
	entries      Entries
	orchestrator Orchestrator
	logger       *slog.Logger
	submitLimit  func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSubmitLimit wraps the submission route, which is the only route that
// reaches the portal.
func WithSubmitLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.submitLimit = mw }
}

func New(entries Entries, orch Orchestrator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{entries: entries, orchestrator: orch, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the entry endpoints. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/entries", h.HandleCreate)
	r.Route("/entries/{entryInfoID}", func(r chi.Router) {
		r.Put("/traveler", h.HandlePrepare)
		if h.submitLimit != nil {
			r.With(h.submitLimit).Post("/submissions", h.HandleSubmit)
		} else {
			r.Post("/submissions", h.HandleSubmit)
		}
		r.Get("/pack", h.HandleGetPack)
		r.Post("/snapshots", h.HandleArchive)
	})
}

// HandleCreate handles POST /entries. Creating the same trip twice returns
// the existing entry.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateEntryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	info, err := h.entries.EnsureEntryInfo(ctx, models.EntryInfoKey{
		UserID:        requestcontext.UserID(ctx),
		DestinationID: req.DestinationID,
		TripID:        req.TripID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to ensure entry info",
			"request_id", requestID,
			"destination_id", req.DestinationID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// HandlePrepare handles PUT /entries/{entryInfoID}/traveler.
func (h *Handler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	info, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TravelerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.orchestrator.Prepare(ctx, info.ID, req.Data())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to save traveler data",
			"request_id", requestID,
			"entry_info_id", info.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSubmit handles POST /entries/{entryInfoID}/submissions. A failed
// submission is still a 200: the outcome carries the classified error.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	info, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.orchestrator.Submit(ctx, orchestrator.SubmitRequest{
		EntryInfoID: info.ID,
		Method:      req.ParsedMethod(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "submission failed",
			"request_id", requestID,
			"entry_info_id", info.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "submission finished",
		"request_id", requestID,
		"entry_info_id", info.ID,
		"method", res.Outcome.Method,
		"success", res.Outcome.Success,
		"attempts", res.Attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleGetPack handles GET /entries/{entryInfoID}/pack. Reading the pack
// is also the detection pass that finalizes a staged submission.
func (h *Handler) HandleGetPack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}
	pack, finalized, err := h.orchestrator.FinalizeRecent(ctx, info.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if finalized {
		info, err = h.entries.GetEntryInfo(ctx, info.ID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, PackResponse{
		Pack:          pack,
		DisplayStatus: models.DisplayStatus(pack.Status, info.Status),
		Finalized:     finalized,
	})
}

// HandleArchive handles POST /entries/{entryInfoID}/snapshots.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	info, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ArchiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	snap, err := h.orchestrator.Archive(ctx, info.ID, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to archive entry",
			"request_id", requestID,
			"entry_info_id", info.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap.Summary())
}

// ownedEntry resolves the path entry and hides entries of other users
// behind a not-found.
func (h *Handler) ownedEntry(w http.ResponseWriter, r *http.Request) (*models.EntryInfo, bool) {
	ctx := r.Context()
	entryInfoID, err := id.ParseEntryInfoID(chi.URLParam(r, "entryInfoID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	info, err := h.entries.GetEntryInfo(ctx, entryInfoID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if info.UserID != requestcontext.UserID(ctx) {
		h.logger.WarnContext(ctx, "entry requested by another user",
			"request_id", requestcontext.RequestID(ctx),
			"entry_info_id", entryInfoID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "entry info not found"))
		return nil, false
	}
	return info, true
}
