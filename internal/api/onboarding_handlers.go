package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"travel-concierge/internal/models"
)

func (s *Server) onboardingRoutes(g *gin.RouterGroup) {
	g.POST("/profile", s.completeOnboarding)
	g.GET("/profile/:sessionId", s.getProfile)
}

func (s *Server) completeOnboarding(c *gin.Context) {
	if s.deps.Onboarding == nil {
		unavailable(c, "onboarding")
		return
	}
	var p models.TripPlanningProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.deps.Onboarding.Complete(c.Request.Context(), &p)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (s *Server) getProfile(c *gin.Context) {
	if s.deps.Onboarding == nil {
		unavailable(c, "onboarding")
		return
	}
	p, err := s.deps.Onboarding.Profile(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}
