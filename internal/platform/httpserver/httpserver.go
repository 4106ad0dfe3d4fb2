package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server. Write timeout leaves room for a hybrid
// submission, which may poll the portal for up to a minute.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
