package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	err error
}

func (c fakeChecker) HealthCheck() error { return c.err }

func TestHealthzHandler(t *testing.T) {
	logger := log.NewNopLogger()

	cases := []struct {
		name     string
		checkers map[string]Checker
		wantCode int
	}{
		{"healthy", map[string]Checker{"mysql": fakeChecker{}}, http.StatusOK},
		{"unhealthy", map[string]Checker{"mysql": fakeChecker{err: errors.New("connection refused")}}, http.StatusInternalServerError},
		{"mixed", map[string]Checker{
			"mysql": fakeChecker{},
			"s3":    fakeChecker{err: errors.New("no such bucket")},
		}, http.StatusInternalServerError},
		{"no checkers", nil, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			Handler(logger, tc.checkers).ServeHTTP(rr, req)
			require.Equal(t, tc.wantCode, rr.Code)
		})
	}
}
