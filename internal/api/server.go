// Package api serves the public and admin JSON endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travel-concierge/internal/autosave"
	"travel-concierge/internal/booking"
	"travel-concierge/internal/common/auth"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/concierge"
	"travel-concierge/internal/models"
	"travel-concierge/internal/onboarding"
	"travel-concierge/internal/search"
	"travel-concierge/internal/session"
	"travel-concierge/internal/visa"
)

type Submitter interface {
	Submit(ctx context.Context, form *booking.FormState, seq *booking.Sequencer, key string) (*booking.SubmitResult, error)
}

type EligibilityEvaluator interface {
	Evaluate(ctx context.Context, q *models.VisaEligibilityQuery) (*models.EligibilityResult, error)
}

type SchengenReader interface {
	Get(ctx context.Context, id string) (*models.SchengenApplication, error)
}

type Onboarding interface {
	Complete(ctx context.Context, p *models.TripPlanningProfile) (*onboarding.Result, error)
	Profile(ctx context.Context, sessionID string) (*models.TripPlanningProfile, error)
}

type Concierge interface {
	Reply(ctx context.Context, conversationID, text string) (*concierge.Reply, error)
	History(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error)
}

type UserDirectory interface {
	ListUsers(ctx context.Context, search string, first, max int) ([]auth.User, error)
	CountUsers(ctx context.Context, search string) (int, error)
	GetUser(ctx context.Context, userID string) (*auth.User, error)
	SetUserEnabled(ctx context.Context, userID string, enabled bool) error
	SendVerifyEmail(ctx context.Context, userID string) error
}

type TableBrowser interface {
	ListTables(ctx context.Context) ([]models.TableInfo, error)
	Rows(ctx context.Context, table string, page, pageSize int) (*models.TablePage, error)
	Export(ctx context.Context, table string) ([]string, []map[string]interface{}, error)
}

type OrderSearcher interface {
	Search(ctx context.Context, q search.OrderQuery) (*search.OrderSearchResult, error)
}

type OrderLister interface {
	RecentOrders(ctx context.Context, limit int) ([]*models.Order, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	CORSOrigins []string
	JWTSecret   string
	JWTIssuer   string
	AdminRole   string
	Version     string
}

// Deps are the services behind the handlers. Nil services leave their routes
// answering 503.
type Deps struct {
	Sessions   *session.Registry
	Validator  *booking.Validator
	Submitter  Submitter
	Visa       EligibilityEvaluator
	AutoSave   *autosave.Saver
	Schengen   SchengenReader
	Onboarding Onboarding
	Concierge  Concierge
	Users      UserDirectory
	Tables     TableBrowser
	Orders     OrderLister
	Search     OrderSearcher
	Audit      AuditRecorder
	Checks     map[string]HealthCheck
}

type Server struct {
	cfg            Config
	deps           Deps
	queryValidator *validator.Validate
	logger         logger.Logger
}

func NewServer(cfg Config, deps Deps, log logger.Logger) *Server {
	if cfg.AdminRole == "" {
		cfg.AdminRole = "admin"
	}
	return &Server{
		cfg:            cfg,
		deps:           deps,
		queryValidator: visa.NewQueryValidator(),
		logger:         log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.logger), RequestMetrics())

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", IdempotencyHeader)
	corsCfg.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(OptionalAuth(s.cfg.JWTSecret, s.cfg.JWTIssuer))

	s.bookingRoutes(api.Group("/booking"))
	s.visaRoutes(api.Group("/visa"))
	s.schengenRoutes(api.Group("/schengen"))
	s.onboardingRoutes(api.Group("/onboarding"))
	s.conciergeRoutes(api.Group("/concierge"))

	admin := api.Group("/supabase")
	admin.Use(AdminAuth(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AdminRole))
	s.adminRoutes(admin)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": s.cfg.Version})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(status, gin.H{"ready": status == http.StatusOK, "checks": checks})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "SERVICE_UNAVAILABLE", "message": what + " is not configured"})
}
