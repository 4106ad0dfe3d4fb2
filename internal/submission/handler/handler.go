// Package handler serves the support diagnostics kept by the failure
// classifier.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"entrypass/internal/submission/failure"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/httputil"
	"entrypass/pkg/requestcontext"
)

type Diagnostics interface {
	ExportDiagnostics() ([]byte, error)
	Lookup(errorID string) (failure.DiagnosticEntry, bool)
}

type Handler struct {
	diagnostics Diagnostics
	logger      *slog.Logger
}

func New(diagnostics Diagnostics, logger *slog.Logger) *Handler {
	return &Handler{diagnostics: diagnostics, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/diagnostics/errors", h.HandleExport)
	r.Get("/diagnostics/errors/{errorID}", h.HandleLookup)
}

// HandleExport streams the retained support log as a downloadable file.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	body, err := h.diagnostics.ExportDiagnostics()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export diagnostics",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export diagnostics"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="entrypass-diagnostics.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleLookup resolves the error id shown to a traveler.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.diagnostics.Lookup(chi.URLParam(r, "errorID"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no diagnostic entry for that error id"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}
