// Package device records the client device of each request. Snapshots carry
// it as their creation metadata.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"entrypass/pkg/requestcontext"
)

// Parse extracts platform, OS and browser details from a User-Agent header.
func Parse(userAgent string) requestcontext.Device {
	if strings.TrimSpace(userAgent) == "" {
		return requestcontext.Device{}
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	browser := strings.TrimSpace(name + " " + version)
	return requestcontext.Device{
		Platform: ua.Platform(),
		OS:       ua.OS(),
		Browser:  browser,
		Mobile:   ua.Mobile(),
	}
}

// Middleware stores the parsed device and client metadata in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), userAgent)
		ctx = requestcontext.WithDevice(ctx, Parse(userAgent))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the originating client IP, honouring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
