package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "travel-concierge/internal/common/errors"
)

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) conciergeRoutes(g *gin.RouterGroup) {
	g.POST("/conversations/:id/messages", s.sendMessage)
	g.GET("/conversations/:id/messages", s.listMessages)
}

// sendMessage answers a traveler's message. When generation fails the stored
// user message is still returned with a message fit for display.
func (s *Server) sendMessage(c *gin.Context) {
	if s.deps.Concierge == nil {
		unavailable(c, "concierge")
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reply, err := s.deps.Concierge.Reply(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil && reply != nil {
		stdErr := apperrors.Normalize(err)
		c.JSON(apperrors.HTTPStatus(stdErr.Code), gin.H{
			"error":     string(stdErr.Code),
			"message":   stdErr.Message,
			"retryable": stdErr.Retryable,
			"data":      reply,
		})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": reply})
}

func (s *Server) listMessages(c *gin.Context) {
	if s.deps.Concierge == nil {
		unavailable(c, "concierge")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := s.deps.Concierge.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}
