package testutil

import (
	"io"
	"log/slog"
	"net/http"

	id "entrypass/pkg/domain"
	"entrypass/pkg/requestcontext"
)

// WithUserID attaches an authenticated user to the request, as the auth
// middleware would. Invalid ids are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// DiscardLogger returns a logger that writes nowhere, for tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
