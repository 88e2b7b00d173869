package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

func Test_writeError_Mapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid", domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"notfound", fmt.Errorf("op=x: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"duplicate", domain.ErrDuplicateName, http.StatusConflict, "CONFLICT"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"rate", domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"pool", domain.ErrPoolExhausted, http.StatusServiceUnavailable, "POOL_EXHAUSTED"},
		{"retries", domain.ErrMaxRetriesExceeded, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"deadline", domain.ErrDeadlineExceeded, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
		{"permanent", domain.ErrPermanentFailure, http.StatusBadGateway, "UPSTREAM_FAILURE"},
		{"parse", domain.ErrParse, http.StatusBadGateway, "SCHEMA_INVALID"},
		{"schema", domain.ErrSchemaInvalid, http.StatusBadGateway, "SCHEMA_INVALID"},
		{"internal", errors.New("dial tcp 10.0.0.5:5432: refused"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			rw := httptest.NewRecorder()
			writeError(rw, r, c.err, nil)
			assert.Equal(t, c.wantStatus, rw.Code)

			var e errorEnvelope
			require.NoError(t, json.NewDecoder(rw.Body).Decode(&e))
			assert.Equal(t, c.wantCode, e.Error.Code)
			if c.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal error", e.Error.Message, "internal details stay in the log")
			}
		})
	}
}

func Test_writeError_UnauthorizedChallenges(t *testing.T) {
	rw := httptest.NewRecorder()
	writeError(rw, httptest.NewRequest(http.MethodGet, "/", nil), domain.ErrUnauthorized, nil)
	assert.Contains(t, rw.Header().Get("WWW-Authenticate"), "Basic")
}
