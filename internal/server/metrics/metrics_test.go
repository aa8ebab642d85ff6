package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestResult(t *testing.T) {
	cases := map[string]error{
		"success":         nil,
		"invalid":         common.NewValidationError("x"),
		"not_found":       common.ErrorNotFound,
		"unauthenticated": fmt.Errorf("wrapped: %w", common.ErrorStaleToken),
		"conflict":        common.ErrorConflict,
		"error":           errors.New("db down"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Result(err), "err=%v", err)
	}
}

func TestCountersExported(t *testing.T) {
	m := New()
	m.Login(nil)
	m.Login(nil)
	m.Login(common.ErrorUnauthenticated)
	m.Refresh(common.ErrorStaleToken)
	m.Logout(nil)
	m.Register(common.ErrorConflict)
	m.ObserveHTTP("/api/v1/users/login", 200, 5*time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, `authkeeper_login_total{result="success"} 2`)
	assert.Contains(t, out, `authkeeper_login_total{result="unauthenticated"} 1`)
	assert.Contains(t, out, `authkeeper_refresh_total{result="unauthenticated"} 1`)
	assert.Contains(t, out, `authkeeper_logout_total{result="success"} 1`)
	assert.Contains(t, out, `authkeeper_register_total{result="conflict"} 1`)
	assert.Contains(t, out, `authkeeper_http_request_duration_seconds_count{code="200",route="/api/v1/users/login"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Login(nil)
	m.Refresh(nil)
	m.Logout(nil)
	m.Register(nil)
	m.ObserveHTTP("/", 200, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
