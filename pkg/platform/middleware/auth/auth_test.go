package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "entrypass/pkg/domain"
	"entrypass/pkg/requestcontext"
)

type RequireAuthSuite struct {
	suite.Suite
	validator *HS256Validator
	handler   http.Handler
	seen      id.UserID
}

func TestRequireAuthSuite(t *testing.T) {
	suite.Run(t, new(RequireAuthSuite))
}

func (s *RequireAuthSuite) SetupTest() {
	s.validator = NewHS256Validator("test-signing-key", "entrypass")
	s.seen = id.UserID{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = RequireAuth(s.validator, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.seen = requestcontext.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func (s *RequireAuthSuite) do(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *RequireAuthSuite) TestRequireAuth() {
	s.Run("valid token exposes the subject", func() {
		userID := id.UserID(uuid.New())
		token, err := s.validator.Issue(userID, time.Hour)
		s.Require().NoError(err)

		rr := s.do("Bearer " + token)
		s.Equal(http.StatusNoContent, rr.Code)
		s.Equal(userID, s.seen)
	})

	s.Run("missing header is rejected", func() {
		rr := s.do("")
		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Contains(rr.Body.String(), "unauthorized")
	})

	s.Run("token signed with another key is rejected", func() {
		other := NewHS256Validator("other-key", "entrypass")
		token, err := other.Issue(id.UserID(uuid.New()), time.Hour)
		s.Require().NoError(err)

		rr := s.do("Bearer " + token)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("expired token is rejected", func() {
		token, err := s.validator.Issue(id.UserID(uuid.New()), -time.Minute)
		s.Require().NoError(err)

		rr := s.do("Bearer " + token)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}
