package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "retryable insert failure",
			err:         NewOrderInsertFailedError(fmt.Errorf("connection reset")),
			wantCode:    "ORDER_INSERT_FAILED",
			wantRetries: 3,
		},
		{
			name:        "validation maps to shared boundary code",
			err:         NewDraftIncompleteError("trip"),
			wantCode:    "BOOKING_VALIDATION_FAILED",
			wantRetries: 0,
		},
		{
			name:        "concierge timeout retried once",
			err:         NewConciergeTimeoutError(),
			wantCode:    "CONCIERGE_TIMEOUT",
			wantRetries: 1,
		},
		{
			name:        "unmapped code thrown as-is",
			err:         NewBusinessRuleError("nope", "details"),
			wantCode:    "BUSINESS_RULE_VIOLATION",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, tt.err.Retryable, vars["retryable"])
		})
	}
}

func TestNormalize(t *testing.T) {
	original := NewOrderNotFoundError("order-1")
	wrapped := fmt.Errorf("lookup: %w", original)

	assert.Same(t, original, Normalize(wrapped))

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), plain.Code)
	assert.Equal(t, "boom", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "BOOKING", GetErrorCategory(ErrCodeSubmissionInFlight))
	assert.Equal(t, "BOOKING", GetErrorCategory(ErrCodeIdempotencyKeyReused))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeWorkflowStartFailed))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeProfileAlreadyExists))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchIndexFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeCRMSyncFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeConciergeFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeForbidden))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(ErrCodeValidationFailed))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeSubmissionInFlight))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeIdempotencyKeyReused))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrCodeWorkflowStartFailed))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrCodeWorkflowNotDeployed))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrCodeOrderNotFound))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(ErrCodeConciergeTimeout))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrCodePaymentFailed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeOrderInsertFailed))
}

func TestValidationFailedCarriesFields(t *testing.T) {
	err := NewValidationFailedError(map[string]string{"email": "Please enter a valid email address"})
	require.NotNil(t, err.Metadata)
	fields, ok := err.Metadata["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "Please enter a valid email address", fields["email"])
	assert.Equal(t, ErrCodeValidationFailed, err.Code)
}
