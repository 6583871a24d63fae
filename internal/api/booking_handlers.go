package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travel-concierge/internal/booking"
	"travel-concierge/internal/models"
	"travel-concierge/internal/session"
)

// IdempotencyHeader lets a client pin retries of one submission together.
const IdempotencyHeader = "Idempotency-Key"

type sessionURI struct {
	ID string `uri:"id" binding:"required"`
}

type createSessionRequest struct {
	Flow string `json:"flow"`
}

type selectPlanRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

type addOnRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type totalsView struct {
	PlanPrice     int64  `json:"planPrice"`
	AddonsTotal   int64  `json:"addonsTotal"`
	TotalAmount   int64  `json:"totalAmount"`
	PlanPriceText string `json:"planPriceText"`
	AddonsText    string `json:"addonsTotalText"`
	TotalText     string `json:"totalAmountText"`
}

type sessionView struct {
	ID        string              `json:"id"`
	Flow      string              `json:"flow"`
	Step      booking.StepID      `json:"step"`
	Index     int                 `json:"index"`
	Steps     []booking.StepID    `json:"steps"`
	Terminal  bool                `json:"terminal"`
	CanGoBack bool                `json:"canGoBack"`
	Draft     models.BookingDraft `json:"draft"`
	Totals    totalsView          `json:"totals"`
	Errors    map[string]string   `json:"errors"`
	Order     *models.Order       `json:"order,omitempty"`
}

func (s *Server) bookingRoutes(g *gin.RouterGroup) {
	g.GET("/catalogue", s.catalogue)
	g.POST("/sessions", s.createSession)
	g.GET("/sessions/:id", s.withSession(s.getSession, false))
	g.DELETE("/sessions/:id", s.deleteSession)
	g.PUT("/sessions/:id/contact", s.withSession(s.setContact, true))
	g.PUT("/sessions/:id/trip", s.withSession(s.setTrip, true))
	g.PUT("/sessions/:id/plan", s.withSession(s.selectPlan, true))
	g.PUT("/sessions/:id/addons/:addOnId", s.withSession(s.setAddOn, true))
	g.POST("/sessions/:id/next", s.withSession(s.nextStep, true))
	g.POST("/sessions/:id/back", s.withSession(s.previousStep, true))
	g.POST("/sessions/:id/submit", s.withSession(s.submit, false))
}

// withSession loads the session named in the path and holds its lock for the
// handler. Mutating handlers are refused once the wizard is confirmed.
func (s *Server) withSession(h func(*gin.Context, *session.Session), mutates bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Sessions == nil {
			unavailable(c, "booking")
			return
		}
		var uri sessionURI
		if err := c.ShouldBindUri(&uri); err != nil {
			badRequest(c, err)
			return
		}
		sess, err := s.deps.Sessions.Get(uri.ID)
		if err != nil {
			s.writeError(c, err)
			return
		}

		sess.Lock()
		defer sess.Unlock()

		if mutates && sess.Seq.IsTerminal() {
			s.writeError(c, booking.ErrFlowComplete)
			return
		}
		h(c, sess)
	}
}

func (s *Server) catalogue(c *gin.Context) {
	if s.deps.Sessions == nil {
		unavailable(c, "booking")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.deps.Sessions.Catalogue()})
}

func (s *Server) createSession(c *gin.Context) {
	if s.deps.Sessions == nil {
		unavailable(c, "booking")
		return
	}
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	sess := s.deps.Sessions.Create(c.GetString(ctxUserID), strings.ToLower(req.Flow))
	sess.Lock()
	defer sess.Unlock()
	c.JSON(http.StatusCreated, gin.H{"data": s.view(sess)})
}

func (s *Server) getSession(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, gin.H{"data": s.view(sess)})
}

func (s *Server) deleteSession(c *gin.Context) {
	if s.deps.Sessions == nil {
		unavailable(c, "booking")
		return
	}
	var uri sessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	if !s.deps.Sessions.Delete(uri.ID) {
		s.writeError(c, session.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setContact(c *gin.Context, sess *session.Session) {
	var contact models.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		badRequest(c, err)
		return
	}
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Email = strings.TrimSpace(contact.Email)
	contact.Phone = strings.TrimSpace(contact.Phone)
	sess.Form.SetContact(contact)
	c.JSON(http.StatusOK, gin.H{"data": s.view(sess)})
}

func (s *Server) setTrip(c *gin.Context, sess *session.Session) {
	var trip models.Trip
	if err := c.ShouldBindJSON(&trip); err != nil {
		badRequest(c, err)
		return
	}
	sess.Form.SetTrip(trip)
	c.JSON(http.StatusOK, gin.H{"data": s.view(sess)})
}

func (s *Server) selectPlan(c *gin.Context, sess *session.Session) {
	var req selectPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := sess.Form.SelectPlan(req.PlanID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.view(sess)})
}

func (s *Server) setAddOn(c *gin.Context, sess *session.Session) {
	var req addOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := sess.Form.SetAddOnQuantity(c.Param("addOnId"), *req.Quantity); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.view(sess)})
}

func (s *Server) nextStep(c *gin.Context, sess *session.Session) {
	if err := sess.Seq.Next(&sess.Form.Draft, s.deps.Validator); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.view(sess)})
}

func (s *Server) previousStep(c *gin.Context, sess *session.Session) {
	if err := sess.Seq.Back(); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.view(sess)})
}

// submit stores the order. A session that already produced an order answers
// with it again instead of submitting twice.
func (s *Server) submit(c *gin.Context, sess *session.Session) {
	if sess.Order != nil {
		c.JSON(http.StatusOK, gin.H{"data": s.view(sess), "order": sess.Order, "replayed": true})
		return
	}
	if s.deps.Submitter == nil {
		unavailable(c, "submission")
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if key == "" {
		key = sess.DefaultIdempotencyKey()
	}

	res, err := s.deps.Submitter.Submit(c.Request.Context(), sess.Form, sess.Seq, key)
	if err != nil {
		s.writeError(c, err)
		return
	}
	sess.Order = res.Order

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": s.view(sess), "order": res.Order, "replayed": res.Replayed})
}

// view renders the session. The caller holds the session lock.
func (s *Server) view(sess *session.Session) sessionView {
	draft := sess.Form.Snapshot()
	var planPrice int64
	if draft.SelectedPlan != nil {
		planPrice = draft.SelectedPlan.Price
	}
	addons := draft.AddonsTotal()
	total := draft.TotalAmount()

	errs := map[string]string{}
	if !sess.Seq.IsTerminal() && s.deps.Validator != nil {
		errs = sess.Seq.Current().Errors(&draft, s.deps.Validator)
	}

	return sessionView{
		ID:        sess.ID,
		Flow:      sess.Seq.Flow().Name,
		Step:      sess.Seq.Current().ID,
		Index:     sess.Seq.Index(),
		Steps:     sess.Seq.Flow().StepIDs(),
		Terminal:  sess.Seq.IsTerminal(),
		CanGoBack: !sess.Seq.IsTerminal() && sess.Seq.Index() > sess.Seq.InitialIndex(),
		Draft:     draft,
		Totals: totalsView{
			PlanPrice:     planPrice,
			AddonsTotal:   addons,
			TotalAmount:   total,
			PlanPriceText: models.FormatMinor(planPrice),
			AddonsText:    models.FormatMinor(addons),
			TotalText:     models.FormatMinor(total),
		},
		Errors: errs,
		Order:  sess.Order,
	}
}
