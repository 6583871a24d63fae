package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/models"
	"travel-concierge/internal/visa"
)

type stepCheckRequest struct {
	Step  visa.StepID                 `json:"step" binding:"required"`
	Query models.VisaEligibilityQuery `json:"query"`
}

func (s *Server) visaRoutes(g *gin.RouterGroup) {
	g.GET("/steps", s.visaSteps)
	g.POST("/steps/check", s.visaStepCheck)
	g.POST("/eligibility", s.visaEligibility)
}

// visaSteps lists the questionnaire steps for the applicant's location.
func (s *Server) visaSteps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": visa.Steps(c.Query("applyingFrom"))})
}

func (s *Server) visaStepCheck(c *gin.Context) {
	var req stepCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q := visa.NewQuestionnaire(s.queryValidator)
	q.Query = req.Query
	fields := q.StepErrors(req.Step)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"step":   req.Step,
		"valid":  len(fields) == 0,
		"fields": fields,
		"steps":  q.Steps(),
	}})
}

func (s *Server) visaEligibility(c *gin.Context) {
	if s.deps.Visa == nil {
		unavailable(c, "eligibility")
		return
	}
	var q models.VisaEligibilityQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		badRequest(c, err)
		return
	}

	res, err := s.deps.Visa.Evaluate(c.Request.Context(), &q)
	if err != nil && res != nil {
		stdErr := apperrors.Normalize(err)
		c.JSON(apperrors.HTTPStatus(stdErr.Code), gin.H{
			"error":   string(stdErr.Code),
			"message": stdErr.Message,
			"data":    res,
		})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}
