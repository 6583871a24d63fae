package visa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/metrics"
	"travel-concierge/internal/models"
)

const cacheKeyPrefix = "eligibility:"

// Evaluator answers a completed questionnaire. Rules are consulted first; the
// remote analysis is cached per normalized query.
type Evaluator struct {
	validate *validator.Validate
	rules    Rules
	analyst  Analyst
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewEvaluator(analyst Analyst, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *Evaluator {
	return &Evaluator{
		validate: NewQueryValidator(),
		analyst:  analyst,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "visa_evaluator"}),
	}
}

// Evaluate returns the eligibility result. When analysis fails the returned
// result has type "error" alongside the error.
func (e *Evaluator) Evaluate(ctx context.Context, q *models.VisaEligibilityQuery) (*models.EligibilityResult, error) {
	if fields := FieldErrors(e.validate, q); len(fields) > 0 {
		return nil, apperrors.NewValidationFailedError(fields)
	}

	if res, ok := e.rules.Evaluate(q); ok {
		res.Source = models.SourceRules
		res.ShowPackages = ShowPackages(res)
		metrics.EligibilityChecks.WithLabelValues(string(models.SourceRules), string(res.Type)).Inc()
		return res, nil
	}

	key := CacheKey(q)
	if res := e.cached(ctx, key); res != nil {
		metrics.EligibilityChecks.WithLabelValues("cache", string(res.Type)).Inc()
		return res, nil
	}

	resp, err := e.analyst.Analyze(ctx, q)
	if err != nil {
		metrics.EligibilityChecks.WithLabelValues(string(models.SourceAnalysis), string(models.EligibilityError)).Inc()
		e.logger.Error("eligibility analysis failed", map[string]interface{}{
			"nationality": q.Nationality,
			"destination": q.Destination,
			"error":       err.Error(),
		})
		return &models.EligibilityResult{
			Type:     models.EligibilityError,
			Analysis: "We couldn't complete the eligibility check right now. Please try again in a moment.",
			Source:   models.SourceAnalysis,
		}, err
	}

	res := resp.toResult()
	res.ShowPackages = ShowPackages(res)
	metrics.EligibilityChecks.WithLabelValues(string(models.SourceAnalysis), string(res.Type)).Inc()

	if res.Type != models.EligibilityError {
		e.store(ctx, key, res)
	}
	return res, nil
}

// CacheKey normalizes the query so equivalent answers share an entry.
func CacheKey(q *models.VisaEligibilityQuery) string {
	usa := ""
	if q.ApplyingFrom == ApplyingFromUSA {
		usa = strings.ToLower(strings.TrimSpace(q.USAStatus))
	}
	return cacheKeyPrefix + strings.ToLower(strings.Join([]string{
		Canonical(q.Nationality),
		Canonical(q.ApplyingFrom),
		usa,
		Canonical(q.Destination),
		strings.TrimSpace(q.Purpose),
		fmt.Sprint(q.DurationDays),
	}, "|"))
}

func (e *Evaluator) cached(ctx context.Context, key string) *models.EligibilityResult {
	if e.cache == nil {
		return nil
	}
	raw, err := e.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			e.logger.Warn("eligibility cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil
	}
	var res models.EligibilityResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil
	}
	return &res
}

func (e *Evaluator) store(ctx context.Context, key string, res *models.EligibilityResult) {
	if e.cache == nil || e.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, payload, e.cacheTTL).Err(); err != nil {
		e.logger.Warn("eligibility cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
