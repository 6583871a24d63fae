// internal/workers/visa/analyze-visa-eligibility/handler_test.go
package analyzevisaeligibility

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/visa"
)

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

func setupHandler(t *testing.T, analysis http.HandlerFunc) (*Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv := httptest.NewServer(analysis)
	t.Cleanup(srv.Close)

	log := &testLogger{t: t}
	evaluator := visa.NewEvaluator(visa.NewAnalysisClient(srv.URL, "test-key", 2*time.Second), rdb, time.Hour, log)
	return NewHandler(&Config{}, evaluator, log), mr
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		input          *Input
		analysis       http.HandlerFunc
		expectedError  bool
		errorCode      apperrors.ErrorCode
		validateOutput func(t *testing.T, output *Output, calls int32)
	}{
		{
			name: "rules answer without analysis",
			input: &Input{VisaEligibilityQuery: models.VisaEligibilityQuery{
				Nationality: "France", ApplyingFrom: "France", Destination: "Germany", Purpose: "tourism", DurationDays: 10,
			}},
			validateOutput: func(t *testing.T, output *Output, calls int32) {
				assert.Equal(t, string(models.EligibilityVisaFree), output.EligibilityType)
				assert.Equal(t, string(models.SourceRules), output.Source)
				assert.True(t, output.ShowPackages)
				assert.Zero(t, calls)
			},
		},
		{
			name: "remote analysis",
			input: &Input{VisaEligibilityQuery: models.VisaEligibilityQuery{
				Nationality: "Peru", ApplyingFrom: "Peru", Destination: "Japan", Purpose: "tourism", DurationDays: 20,
			}},
			analysis: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(visa.AnalysisResponse{
					Status:   "visa-required",
					Analysis: "A temporary visitor visa is needed.",
					Tips:     []string{"Apply 6 weeks ahead"},
				})
			},
			validateOutput: func(t *testing.T, output *Output, calls int32) {
				assert.Equal(t, string(models.EligibilityVisaRequired), output.EligibilityType)
				assert.Equal(t, string(models.SourceAnalysis), output.Source)
				assert.Equal(t, []string{"Apply 6 weeks ahead"}, output.Tips)
				assert.Equal(t, int32(1), calls)
			},
		},
		{
			name: "analysis unavailable",
			input: &Input{VisaEligibilityQuery: models.VisaEligibilityQuery{
				Nationality: "Peru", ApplyingFrom: "Peru", Destination: "Japan", Purpose: "business", DurationDays: 5,
			}},
			analysis: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expectedError: true,
			errorCode:     apperrors.ErrCodeEligibilityAnalysisFailed,
		},
		{
			name:          "incomplete questionnaire",
			input:         &Input{VisaEligibilityQuery: models.VisaEligibilityQuery{Nationality: "Peru"}},
			expectedError: true,
			errorCode:     apperrors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			handler, _ := setupHandler(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				if tt.analysis == nil {
					t.Errorf("unexpected analysis call")
					return
				}
				tt.analysis(w, r)
			})

			output, err := handler.Execute(context.Background(), tt.input)

			if tt.expectedError {
				require.Error(t, err)
				var stdErr *apperrors.StandardError
				require.True(t, errors.As(err, &stdErr))
				assert.Equal(t, tt.errorCode, stdErr.Code)
				assert.Nil(t, output)
				return
			}
			require.NoError(t, err)
			tt.validateOutput(t, output, atomic.LoadInt32(&calls))
		})
	}
}

func TestHandler_Execute_UsesCache(t *testing.T) {
	var calls int32
	handler, mr := setupHandler(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"eligible","analysis":"Eligible for an e-visa."}`))
	})
	input := &Input{VisaEligibilityQuery: models.VisaEligibilityQuery{
		Nationality: "Brazil", ApplyingFrom: "Brazil", Destination: "India", Purpose: "tourism", DurationDays: 14,
	}}

	_, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, mr.Exists(visa.CacheKey(&input.VisaEligibilityQuery)))

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "eligible", output.EligibilityType)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
