package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"travel-concierge/internal/booking"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/session"
)

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func init() {
	gin.SetMode(gin.TestMode)
}

// bookingDeps wires a real registry and validator on a fixed clock.
func bookingDeps(t *testing.T) Deps {
	clock := clockwork.NewFakeClockAt(testNow)
	return Deps{
		Sessions:  session.NewRegistry(session.Config{}, nil, clock, &testLogger{t: t}),
		Validator: booking.NewValidator(clock, time.UTC),
	}
}

func newTestRouter(t *testing.T, cfg Config, deps Deps) *gin.Engine {
	t.Helper()
	return NewServer(cfg, deps, &testLogger{t: t}).Router()
}

func doRequest(t *testing.T, r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, Config{Version: "1.2.3"}, Deps{})

	w := doRequest(t, r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, "1.2.3", gjson.Get(w.Body.String(), "version").String())
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantReady  bool
	}{
		{
			name:       "all dependencies up",
			checks:     map[string]HealthCheck{"postgres": func(context.Context) error { return nil }},
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name: "one dependency down",
			checks: map[string]HealthCheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantReady:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, Config{}, Deps{Checks: tt.checks})
			w := doRequest(t, r, http.MethodGet, "/ready", nil, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantReady, gjson.Get(w.Body.String(), "ready").Bool())
		})
	}
}

func TestUnconfiguredServiceAnswers503(t *testing.T) {
	r := newTestRouter(t, Config{}, Deps{})

	w := doRequest(t, r, http.MethodPost, "/api/booking/sessions", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", gjson.Get(w.Body.String(), "error").String())
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, Config{CORSOrigins: []string{"https://app.example.com"}}, bookingDeps(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/booking/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", IdempotencyHeader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
