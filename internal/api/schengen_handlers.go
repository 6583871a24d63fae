package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "travel-concierge/internal/common/errors"
)

type formURI struct {
	FormKey string `uri:"formKey" binding:"required,max=128"`
}

type formChangeRequest struct {
	Step int             `json:"step" binding:"min=0"`
	Data json.RawMessage `json:"data" binding:"required"`
}

type resumeRequest struct {
	FormKey string `json:"formKey" binding:"required,max=128"`
}

func (s *Server) schengenRoutes(g *gin.RouterGroup) {
	g.PUT("/forms/:formKey", s.formChange)
	g.POST("/forms/:formKey/save", s.formSave)
	g.GET("/forms/:formKey/status", s.formStatus)
	g.GET("/applications/:id", s.getApplication)
	g.POST("/applications/:id/resume", s.resumeApplication)
}

// formChange records the latest form state. The save happens once edits
// pause, so the request is only accepted here.
func (s *Server) formChange(c *gin.Context) {
	if s.deps.AutoSave == nil {
		unavailable(c, "auto-save")
		return
	}
	var uri formURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var req formChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !json.Valid(req.Data) {
		badRequest(c, errInvalidFormData)
		return
	}

	version := s.deps.AutoSave.Change(uri.FormKey, req.Step, req.Data)
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"formKey": uri.FormKey, "version": version}})
}

// formSave skips the quiet window, e.g. when the user leaves the page.
func (s *Server) formSave(c *gin.Context) {
	if s.deps.AutoSave == nil {
		unavailable(c, "auto-save")
		return
	}
	var uri formURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.deps.AutoSave.Flush(uri.FormKey); err != nil {
		s.writeError(c, apperrors.NewDatabaseQueryFailedError("autosave", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.deps.AutoSave.Status(uri.FormKey)})
}

func (s *Server) formStatus(c *gin.Context) {
	if s.deps.AutoSave == nil {
		unavailable(c, "auto-save")
		return
	}
	var uri formURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.deps.AutoSave.Status(uri.FormKey)})
}

func (s *Server) getApplication(c *gin.Context) {
	if s.deps.Schengen == nil {
		unavailable(c, "applications")
		return
	}
	app, err := s.deps.Schengen.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": app})
}

// resumeApplication loads a stored application and binds it to a new form so
// further edits update it.
func (s *Server) resumeApplication(c *gin.Context) {
	if s.deps.Schengen == nil || s.deps.AutoSave == nil {
		unavailable(c, "applications")
		return
	}
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	app, err := s.deps.Schengen.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.deps.AutoSave.Attach(req.FormKey, app)
	c.JSON(http.StatusOK, gin.H{"data": app, "status": s.deps.AutoSave.Status(req.FormKey)})
}
