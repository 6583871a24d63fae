package visa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "travel-concierge/internal/common/errors"
	commonhttp "travel-concierge/internal/common/http"
	"travel-concierge/internal/models"
)

const EligibilityPath = "/api/visa/eligibility"

// AnalysisResponse is the remote function's answer, rendered as-is.
type AnalysisResponse struct {
	Status       string   `json:"status"`
	Analysis     string   `json:"analysis"`
	Tips         []string `json:"tips"`
	Alternative  string   `json:"alternative"`
	VisaCategory string   `json:"visaCategory,omitempty"`
}

type Analyst interface {
	Analyze(ctx context.Context, q *models.VisaEligibilityQuery) (*AnalysisResponse, error)
}

// AnalysisClient calls the eligibility analysis function once, without retries.
type AnalysisClient struct {
	client *commonhttp.Client
}

func NewAnalysisClient(baseURL, apiKey string, timeout time.Duration) *AnalysisClient {
	c := commonhttp.NewClient(timeout).
		WithBaseURL(strings.TrimSuffix(baseURL, "/")).
		WithHeader("Authorization", bearer(apiKey))
	return &AnalysisClient{client: c}
}

func (a *AnalysisClient) Analyze(ctx context.Context, q *models.VisaEligibilityQuery) (*AnalysisResponse, error) {
	var out AnalysisResponse
	if err := a.client.PostJSON(ctx, EligibilityPath, q, &out); err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewEligibilityTimeoutError()
		}
		return nil, apperrors.NewEligibilityAnalysisFailedError(err)
	}
	if out.Status == "" {
		return nil, apperrors.NewEligibilityAnalysisFailedError(fmt.Errorf("response has no status"))
	}
	return &out, nil
}

// toResult maps the remote status onto a result type; unknown statuses ask
// for more information.
func (r *AnalysisResponse) toResult() *models.EligibilityResult {
	t := models.EligibilityType(strings.ToLower(strings.TrimSpace(r.Status)))
	switch t {
	case models.EligibilityVisaFree, models.EligibilityVisaRequired, models.EligibilityEligible,
		models.EligibilityNotEligible, models.EligibilityNeedsMoreInfo, models.EligibilityError:
	default:
		t = models.EligibilityNeedsMoreInfo
	}
	return &models.EligibilityResult{
		Type:         t,
		Analysis:     r.Analysis,
		Tips:         r.Tips,
		Alternative:  r.Alternative,
		VisaCategory: r.VisaCategory,
		Source:       models.SourceAnalysis,
	}
}

func bearer(key string) string {
	if key == "" {
		return ""
	}
	return "Bearer " + key
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
