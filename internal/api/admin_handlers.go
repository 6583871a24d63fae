package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/models"
	"travel-concierge/internal/search"
	"travel-concierge/internal/store"
)

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100
)

type userURI struct {
	ID string `uri:"id" binding:"required"`
}

type userStatusRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type tableURI struct {
	Table string `uri:"table" binding:"required"`
}

func (s *Server) adminRoutes(g *gin.RouterGroup) {
	g.GET("/users", s.listUsers)
	g.PATCH("/users/:id/status", s.setUserStatus)
	g.POST("/users/:id/resend-confirmation", s.resendConfirmation)

	g.GET("/tables", s.listTables)
	g.GET("/tables/:table/rows", s.tableRows)
	g.GET("/tables/:table/export", s.exportTable)

	g.GET("/orders", s.recentOrders)
	g.GET("/orders/search", s.searchOrders)
}

func (s *Server) listUsers(c *gin.Context) {
	if s.deps.Users == nil {
		unavailable(c, "user directory")
		return
	}
	page, pageSize := pageParams(c, defaultUserPageSize, maxUserPageSize)
	query := c.Query("search")
	ctx := c.Request.Context()

	users, err := s.deps.Users.ListUsers(ctx, query, (page-1)*pageSize, pageSize)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total, err := s.deps.Users.CountUsers(ctx, query)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":     users,
		"page":     page,
		"pageSize": pageSize,
		"total":    total,
	})
}

func (s *Server) setUserStatus(c *gin.Context) {
	if s.deps.Users == nil {
		unavailable(c, "user directory")
		return
	}
	var uri userURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := s.deps.Users.SetUserEnabled(ctx, uri.ID, *req.Enabled); err != nil {
		s.writeError(c, err)
		return
	}
	s.audit(c, "user_status_changed", "user", uri.ID, map[string]interface{}{"enabled": *req.Enabled})

	user, err := s.deps.Users.GetUser(ctx, uri.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) resendConfirmation(c *gin.Context) {
	if s.deps.Users == nil {
		unavailable(c, "user directory")
		return
	}
	var uri userURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := s.deps.Users.GetUser(ctx, uri.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if user.EmailVerified {
		s.writeError(c, apperrors.NewBusinessRuleError("Email already confirmed", "user: "+uri.ID))
		return
	}
	if err := s.deps.Users.SendVerifyEmail(ctx, uri.ID); err != nil {
		s.writeError(c, err)
		return
	}
	s.audit(c, "confirmation_resent", "user", uri.ID, map[string]interface{}{"email": user.Email})
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"userId": uri.ID, "sent": true}})
}

func (s *Server) listTables(c *gin.Context) {
	if s.deps.Tables == nil {
		unavailable(c, "table browser")
		return
	}
	tables, err := s.deps.Tables.ListTables(c.Request.Context())
	if err != nil {
		s.writeError(c, apperrors.NewDatabaseQueryFailedError("list_tables", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tables})
}

func (s *Server) tableRows(c *gin.Context) {
	if s.deps.Tables == nil {
		unavailable(c, "table browser")
		return
	}
	var uri tableURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	page, pageSize := pageParams(c, store.DefaultPageSize, store.MaxPageSize)

	result, err := s.deps.Tables.Rows(c.Request.Context(), uri.Table, page, pageSize)
	if err != nil {
		s.tableError(c, "table_rows", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// exportTable streams a whole table as CSV, or JSON with format=json.
func (s *Server) exportTable(c *gin.Context) {
	if s.deps.Tables == nil {
		unavailable(c, "table browser")
		return
	}
	var uri tableURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		badRequest(c, fmt.Errorf("unsupported export format %q", format))
		return
	}

	cols, rows, err := s.deps.Tables.Export(c.Request.Context(), uri.Table)
	if err != nil {
		s.tableError(c, "table_export", err)
		return
	}
	s.audit(c, "table_exported", "table", uri.Table, map[string]interface{}{"format": format, "rows": len(rows)})

	filename := fmt.Sprintf("%s-%s.%s", uri.Table, time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if format == "json" {
		c.JSON(http.StatusOK, gin.H{"table": uri.Table, "columns": cols, "rows": rows})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	_ = w.Write(cols)
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = csvValue(row[col])
		}
		_ = w.Write(record)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		s.logger.Warn("csv export interrupted", map[string]interface{}{"table": uri.Table, "error": err.Error()})
	}
}

func (s *Server) recentOrders(c *gin.Context) {
	if s.deps.Orders == nil {
		unavailable(c, "orders")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > store.MaxPageSize {
		limit = 50
	}
	orders, err := s.deps.Orders.RecentOrders(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, apperrors.NewDatabaseQueryFailedError("recent_orders", err))
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (s *Server) searchOrders(c *gin.Context) {
	if s.deps.Search == nil {
		unavailable(c, "order search")
		return
	}
	var q search.OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.deps.Search.Search(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, apperrors.NewSearchQueryFailedError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) tableError(c *gin.Context, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "RESOURCE_NOT_FOUND", "message": "Unknown table " + c.Param("table")})
		return
	}
	s.writeError(c, apperrors.NewDatabaseQueryFailedError(op, err))
}

func (s *Server) audit(c *gin.Context, event, resourceType, resourceID string, details map[string]interface{}) {
	if s.deps.Audit == nil {
		return
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["actor"] = c.GetString(ctxUserID)
	s.deps.Audit.Record(c.Request.Context(), models.AuditEntry{
		EventType:    event,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    time.Now().UTC(),
	})
}

func pageParams(c *gin.Context, defaultSize, maxSize int) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultSize)))
	if err != nil || size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

func csvValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
