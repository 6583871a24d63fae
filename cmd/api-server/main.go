// cmd/api-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"travel-concierge/internal/api"
	"travel-concierge/internal/autosave"
	"travel-concierge/internal/booking"
	"travel-concierge/internal/common/auth"
	"travel-concierge/internal/common/camunda"
	"travel-concierge/internal/common/config"
	"travel-concierge/internal/common/database"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/observability"
	"travel-concierge/internal/common/zoho"
	"travel-concierge/internal/concierge"
	"travel-concierge/internal/crm"
	"travel-concierge/internal/notify"
	"travel-concierge/internal/onboarding"
	"travel-concierge/internal/payments"
	"travel-concierge/internal/search"
	"travel-concierge/internal/session"
	"travel-concierge/internal/store"
	"travel-concierge/internal/visa"
)

const seedTTL = 24 * time.Hour

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting api-server...", zap.String("version", cfg.App.Version), zap.String("environment", cfg.App.Environment))

	obs := observability.New("api-server", log)
	defer obs.Shutdown()

	ctx := context.Background()
	clock := clockwork.NewRealClock()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch; search is optional ---
	var orderIndex *search.OrderIndex
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.OrderIndex, search.OrderMapping)
		}
		if err != nil {
			zapLog.Warn("order search disabled", zap.Error(err))
		} else {
			orderIndex = search.NewOrderIndex(esClient.Client, cfg.Database.Elasticsearch.OrderIndex, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Stores ---
	orders := store.NewOrderStore(pg.DB, log)
	schengen := store.NewSchengenStore(pg.DB)
	profiles := store.NewProfileStore(pg.DB)
	chats := store.NewChatStore(pg.DB)

	// --- Submission pipeline ---
	effects, closeEffects := buildEffects(ctx, cfg, orderIndex, log, zapLog)
	defer closeEffects()

	validator := booking.NewValidator(clock, cfg.Location())
	deps := booking.SubmitterDeps{
		Validator: validator,
		Orders:    orders,
		Keys:      store.NewIdempotencyStore(rdb.Client, config.GetDuration(cfg.Booking.IdempotencyTTL)),
		Effects:   effects,
		Recorder:  obs,
		Clock:     clock,
	}
	if cfg.Integrations.Stripe.Enabled {
		deps.Payments = payments.NewStripeGateway(cfg.Integrations.Stripe.SecretKey, log)
	}
	submitter := booking.NewSubmitter(booking.SubmitterConfig{
		Currency:      cfg.Booking.Currency,
		EffectTimeout: config.GetDuration(cfg.Booking.NotificationTimeout),
	}, deps, log)

	sessions := session.NewRegistry(session.Config{
		TTL:          config.GetDuration(cfg.Booking.SessionTTL),
		ReapInterval: config.GetDuration(cfg.Booking.ReapInterval),
	}, booking.DefaultCatalogue(), clock, log)
	if err := sessions.Start(); err != nil {
		zapLog.Fatal("session reaper failed to start", zap.Error(err))
	}

	saver := autosave.NewSaver(autosave.Config{
		Debounce:     config.GetDuration(cfg.AutoSave.Debounce),
		SaveTimeout:  config.GetDuration(cfg.AutoSave.SaveTimeout),
		IdleTTL:      config.GetDuration(cfg.AutoSave.IdleTTL),
		ReapInterval: config.GetDuration(cfg.AutoSave.ReapInterval),
	}, schengen, clock, log)
	if err := saver.Start(); err != nil {
		zapLog.Fatal("autosave reaper failed to start", zap.Error(err))
	}

	// --- Visa eligibility, onboarding and concierge ---
	analyst := visa.NewAnalysisClient(cfg.APIs.VisaAnalysis.BaseURL, cfg.APIs.VisaAnalysis.APIKey, config.GetDuration(cfg.APIs.VisaAnalysis.Timeout))
	evaluator := visa.NewEvaluator(analyst, rdb.Client, config.GetDuration(cfg.APIs.VisaAnalysis.CacheTTL), log)

	onboard := onboarding.NewService(profiles, chats, rdb.Client, seedTTL, clock, log)
	generator := concierge.NewGenAIClient(cfg.APIs.GenAI.BaseURL, cfg.APIs.GenAI.APIKey, config.GetDuration(cfg.APIs.GenAI.Timeout))
	chat := concierge.NewService(concierge.Config{
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
		Timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
	}, generator, chats, profiles, rdb.Client, clock, log)

	// --- Admin ---
	apiDeps := api.Deps{
		Sessions:   sessions,
		Validator:  validator,
		Submitter:  submitter,
		Visa:       evaluator,
		AutoSave:   saver,
		Schengen:   schengen,
		Onboarding: onboard,
		Concierge:  chat,
		Tables:     store.NewAdminStore(pg.DB),
		Orders:     orders,
		Audit:      store.NewAuditLog(pg.DB, log),
		Checks: map[string]api.HealthCheck{
			"postgres": pg.Ping,
			"redis":    rdb.Ping,
		},
	}
	if orderIndex != nil {
		apiDeps.Search = orderIndex
	}
	if cfg.Auth.Keycloak.URL != "" {
		kc := auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
		apiDeps.Users = kc
		apiDeps.Checks["keycloak"] = kc.Ping
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(api.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		JWTSecret:   cfg.Auth.JWT.Secret,
		JWTIssuer:   cfg.Auth.JWT.Issuer,
		AdminRole:   cfg.Auth.JWT.AdminRole,
		Version:     cfg.App.Version,
	}, apiDeps, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zapLog.Info("Shutting down api-server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	if err := sessions.Shutdown(); err != nil {
		zapLog.Warn("session reaper shutdown failed", zap.Error(err))
	}
	if err := saver.Shutdown(); err != nil {
		zapLog.Warn("autosave reaper shutdown failed", zap.Error(err))
	}

	zapLog.Info("Waiting for background work to drain...")
	submitter.Wait()
	saver.Wait()
	zapLog.Info("api-server stopped")
}

// buildEffects assembles the post-submission effects. With use_workflow the
// notification is handed to the fulfilment process instead of being sent here.
func buildEffects(ctx context.Context, cfg *config.Config, index *search.OrderIndex, log logger.Logger, zapLog *zap.Logger) ([]booking.Effect, func()) {
	var effects []booking.Effect
	closer := func() {}

	if cfg.Booking.UseWorkflow {
		zb, err := camunda.NewClient(cfg.Camunda.BrokerAddress)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		closer = func() { _ = zb.Close() }
		effects = append(effects, notify.NewWorkflowNotifier(zb, cfg.Booking.FulfilmentProcessID, log))
	} else {
		effects = append(effects, notify.FromConfig(ctx, cfg, log))
	}

	if cfg.Integrations.Zoho.APIKey != "" || cfg.Integrations.Zoho.AuthToken != "" {
		crmClient := zoho.NewCRMClient(cfg.Integrations.Zoho.BaseURL, cfg.Integrations.Zoho.APIKey, cfg.Integrations.Zoho.AuthToken)
		effects = append(effects, crm.NewSyncer(crmClient, log))
	}
	if index != nil {
		effects = append(effects, index)
	}
	return effects, closer
}
