package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"travel-concierge/internal/booking"
	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/session"
	"travel-concierge/internal/store"
)

// writeError answers with the status and body for err. Server-side failures
// are logged; client mistakes are not.
func (s *Server) writeError(c *gin.Context, err error) {
	var stepErr *booking.StepError
	switch {
	case errors.As(err, &stepErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   booking.ErrStepInvalid.Error(),
			"message": "Please complete the highlighted fields",
			"step":    stepErr.Step,
			"fields":  stepErr.Fields,
		})
		return
	case errors.Is(err, booking.ErrSubmitRequired),
		errors.Is(err, booking.ErrFlowComplete),
		errors.Is(err, booking.ErrAtInitialStep),
		errors.Is(err, booking.ErrNotOnReview):
		c.JSON(http.StatusConflict, gin.H{"error": rootCode(err), "message": err.Error()})
		return
	case errors.Is(err, booking.ErrUnknownPlan),
		errors.Is(err, booking.ErrUnknownAddOn),
		errors.Is(err, booking.ErrQuantityOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rootCode(err), "message": err.Error()})
		return
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": session.ErrNotFound.Error(), "message": "Booking session not found or expired"})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "RESOURCE_NOT_FOUND", "message": err.Error()})
		return
	}

	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"path":    c.Request.URL.Path,
			"code":    string(stdErr.Code),
			"details": stdErr.Details,
		})
	}

	body := gin.H{
		"error":     string(stdErr.Code),
		"message":   stdErr.Message,
		"retryable": stdErr.Retryable,
	}
	if fields, ok := stdErr.Metadata["fields"]; ok {
		body["fields"] = fields
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": string(apperrors.ErrCodeInvalidPayload), "message": err.Error()})
}

// rootCode returns the sentinel code at the bottom of a wrapped error.
func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

var errInvalidFormData = errors.New("data must be valid JSON")
