// Package errors provides the structured error model shared by the HTTP API and the
// job workers, and its mapping onto BPMN errors.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeDraftIncomplete    ErrorCode = "DRAFT_INCOMPLETE"
	ErrCodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	ErrCodeQuantityOutOfRange ErrorCode = "QUANTITY_OUT_OF_RANGE"

	ErrCodeOrderInsertFailed    ErrorCode = "ORDER_INSERT_FAILED"
	ErrCodeSubmissionInFlight   ErrorCode = "SUBMISSION_IN_FLIGHT"
	ErrCodeIdempotencyKeyReused ErrorCode = "IDEMPOTENCY_KEY_REUSED"
	ErrCodePaymentFailed        ErrorCode = "PAYMENT_FAILED"
	ErrCodeOrderNotFound        ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseTimeout      ErrorCode = "DATABASE_TIMEOUT"
	ErrCodeSearchIndexFailed    ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeProfileAlreadyExists ErrorCode = "PROFILE_ALREADY_EXISTS"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeCRMSyncFailed          ErrorCode = "CRM_SYNC_FAILED"

	ErrCodeEligibilityAnalysisFailed ErrorCode = "ELIGIBILITY_ANALYSIS_FAILED"
	ErrCodeEligibilityTimeout        ErrorCode = "ELIGIBILITY_TIMEOUT"
	ErrCodeConciergeTimeout          ErrorCode = "CONCIERGE_TIMEOUT"
	ErrCodeConciergeFailed           ErrorCode = "CONCIERGE_FAILED"

	ErrCodeWorkflowStartFailed ErrorCode = "WORKFLOW_START_FAILED"
	ErrCodeWorkflowNotDeployed ErrorCode = "WORKFLOW_NOT_DEPLOYED"

	ErrCodeIdentityProviderFailed ErrorCode = "IDENTITY_PROVIDER_FAILED"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden              ErrorCode = "FORBIDDEN"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the process variables set alongside a failed job.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError carries per-field messages in Metadata["fields"].
func NewValidationFailedError(fields map[string]string) *StandardError {
	return newError(ErrCodeValidationFailed, "Some fields need attention", "", false).
		WithMetadata("fields", fields)
}

func NewDraftIncompleteError(step string) *StandardError {
	return newError(ErrCodeDraftIncomplete, "Booking is not complete", fmt.Sprintf("step: %s", step), false)
}

func NewInvalidPayloadError(details string) *StandardError {
	return newError(ErrCodeInvalidPayload, "Request payload is invalid", details, false)
}

func NewProfileAlreadyExistsError(sessionID string) *StandardError {
	return newError(ErrCodeProfileAlreadyExists, "Profile already completed", fmt.Sprintf("sessionId: %s", sessionID), false)
}

func NewOrderInsertFailedError(err error) *StandardError {
	return newError(ErrCodeOrderInsertFailed, "Order could not be saved", err.Error(), true)
}

func NewSubmissionInFlightError(idempotencyKey string) *StandardError {
	return newError(ErrCodeSubmissionInFlight, "Submission already in progress", fmt.Sprintf("idempotencyKey: %s", idempotencyKey), false)
}

func NewIdempotencyKeyReusedError(idempotencyKey string) *StandardError {
	return newError(ErrCodeIdempotencyKeyReused, "This idempotency key belongs to another booking", fmt.Sprintf("idempotencyKey: %s", idempotencyKey), false)
}

func NewPaymentFailedError(err error) *StandardError {
	return newError(ErrCodePaymentFailed, "Payment could not be initiated", err.Error(), true)
}

func NewOrderNotFoundError(orderID string) *StandardError {
	return newError(ErrCodeOrderNotFound, "Order not found", fmt.Sprintf("orderId: %s", orderID), false)
}

func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query failed", fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewSearchIndexFailedError(err error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Search indexing failed", err.Error(), true)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed", err.Error(), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed", fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

func NewCRMSyncFailedError(err error) *StandardError {
	return newError(ErrCodeCRMSyncFailed, "CRM contact sync failed", err.Error(), true)
}

func NewEligibilityAnalysisFailedError(err error) *StandardError {
	return newError(ErrCodeEligibilityAnalysisFailed, "Eligibility analysis failed", err.Error(), true)
}

func NewEligibilityTimeoutError() *StandardError {
	return newError(ErrCodeEligibilityTimeout, "Eligibility analysis timeout", "analysis call exceeded its deadline", true)
}

func NewConciergeTimeoutError() *StandardError {
	return newError(ErrCodeConciergeTimeout, "Concierge reply timeout", "generation call exceeded its deadline", true)
}

func NewConciergeFailedError(err error) *StandardError {
	return newError(ErrCodeConciergeFailed, "Concierge reply failed", err.Error(), true)
}

func NewWorkflowStartFailedError(processID string, err error) *StandardError {
	return newError(ErrCodeWorkflowStartFailed, "Fulfilment process could not be started", fmt.Sprintf("processId: %s, error: %s", processID, err.Error()), true)
}

func NewWorkflowNotDeployedError(processID string) *StandardError {
	return newError(ErrCodeWorkflowNotDeployed, "Fulfilment process is not deployed", fmt.Sprintf("processId: %s", processID), false)
}

func NewIdentityProviderError(operation string, err error) *StandardError {
	return newError(ErrCodeIdentityProviderFailed, "Identity provider request failed", fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError("BUSINESS_RULE_VIOLATION", message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes modelled on the BPMN
// boundary events. Codes not listed are thrown as-is.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:          "BOOKING_VALIDATION_FAILED",
	ErrCodeDraftIncomplete:           "BOOKING_VALIDATION_FAILED",
	ErrCodeInvalidPayload:            "BOOKING_VALIDATION_FAILED",
	ErrCodeOrderInsertFailed:         "ORDER_INSERT_FAILED",
	ErrCodePaymentFailed:             "PAYMENT_FAILED",
	ErrCodeOrderNotFound:             "ORDER_NOT_FOUND",
	ErrCodeDatabaseQueryFailed:       "DATABASE_QUERY_FAILED",
	ErrCodeDatabaseTimeout:           "DATABASE_TIMEOUT",
	ErrCodeSearchIndexFailed:         "SEARCH_INDEX_FAILED",
	ErrCodeNotificationSendFailed:    "NOTIFICATION_SEND_FAILED",
	ErrCodeCRMSyncFailed:             "CRM_SYNC_FAILED",
	ErrCodeEligibilityAnalysisFailed: "ELIGIBILITY_ANALYSIS_FAILED",
	ErrCodeEligibilityTimeout:        "ELIGIBILITY_TIMEOUT",
	ErrCodeConciergeTimeout:          "CONCIERGE_TIMEOUT",
	ErrCodeConciergeFailed:           "CONCIERGE_FAILED",
}

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeOrderInsertFailed,
		ErrCodeDatabaseQueryFailed,
		ErrCodeSearchIndexFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeCRMSyncFailed,
		ErrCodeEligibilityAnalysisFailed:
		return 3

	case ErrCodeDatabaseTimeout,
		ErrCodeEligibilityTimeout,
		ErrCodePaymentFailed:
		return 2

	case ErrCodeConciergeTimeout,
		ErrCodeConciergeFailed:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logs and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INCOMPLETE") ||
		strings.Contains(codeStr, "PAYLOAD") || strings.Contains(codeStr, "RANGE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ORDER") || strings.Contains(codeStr, "SUBMISSION") || strings.Contains(codeStr, "PAYMENT") ||
		strings.Contains(codeStr, "IDEMPOTENCY"):
		return "BOOKING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PROFILE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "CRM"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "ELIGIBILITY") || strings.Contains(codeStr, "CONCIERGE"):
		return "AI"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "IDENTITY") || strings.Contains(codeStr, "AUTHORIZED") || strings.Contains(codeStr, "FORBIDDEN"):
		return "AUTH"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps a code onto the status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeDraftIncomplete, ErrCodeQuantityOutOfRange:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidPayload:
		return http.StatusBadRequest
	case ErrCodeWorkflowNotDeployed:
		return http.StatusServiceUnavailable
	case ErrCodeSubmissionInFlight, ErrCodeIdempotencyKeyReused, ErrCodeProfileAlreadyExists,
		"BUSINESS_RULE_VIOLATION":
		return http.StatusConflict
	case ErrCodeOrderNotFound, "RESOURCE_NOT_FOUND":
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeEligibilityTimeout, ErrCodeConciergeTimeout, ErrCodeDatabaseTimeout, "TIMEOUT_ERROR":
		return http.StatusGatewayTimeout
	case ErrCodePaymentFailed, ErrCodeIdentityProviderFailed, ErrCodeEligibilityAnalysisFailed,
		ErrCodeConciergeFailed, ErrCodeSearchQueryFailed, ErrCodeWorkflowStartFailed, "EXTERNAL_SERVICE_ERROR":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
