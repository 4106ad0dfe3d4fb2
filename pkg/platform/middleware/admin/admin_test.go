package admin

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"entrypass/pkg/testutil"
)

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{"matching token", "s3cret", "s3cret", http.StatusNoContent},
		{"wrong token", "s3cret", "guess", http.StatusUnauthorized},
		{"missing token", "s3cret", "", http.StatusUnauthorized},
		{"routes disabled without a token", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAdminToken(tt.expected, testutil.DiscardLogger())(ok)
			req := testutil.NewRequest(t, http.MethodPost, "/admin/snapshots/cleanup")
			if tt.sent != "" {
				req.Header.Set(headerAdminToken, tt.sent)
			}

			rr := testutil.DoRequest(h, req)

			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
