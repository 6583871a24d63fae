// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"travel-concierge/internal/booking"
	"travel-concierge/internal/common/camunda"
	"travel-concierge/internal/common/config"
	"travel-concierge/internal/common/database"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/observability"
	"travel-concierge/internal/common/zoho"
	"travel-concierge/internal/concierge"
	"travel-concierge/internal/crm"
	"travel-concierge/internal/notify"
	"travel-concierge/internal/search"
	"travel-concierge/internal/store"
	"travel-concierge/internal/visa"
	"travel-concierge/pkg/registry"

	// Booking fulfilment workers
	cor "travel-concierge/internal/workers/booking/create-order-record"
	ido "travel-concierge/internal/workers/booking/index-order"
	sbn "travel-concierge/internal/workers/booking/send-booking-notification"
	vbd "travel-concierge/internal/workers/booking/validate-booking-data"
	scc "travel-concierge/internal/workers/crm/sync-crm-contact"

	// Visa and concierge workers
	cr "travel-concierge/internal/workers/concierge/concierge-reply"
	ave "travel-concierge/internal/workers/visa/analyze-visa-eligibility"
)

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

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	obs := observability.New("worker-manager", log)
	defer obs.Shutdown()

	ctx := context.Background()
	clock := clockwork.NewRealClock()

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Warn("activity registry unavailable, input schemas disabled", zap.String("path", cfg.Registry.Path), zap.Error(err))
		reg = nil
	} else {
		zapLog.Info("Activity registry loaded", zap.String("version", reg.Version), zap.Int("activities", len(reg.Activities)))
	}

	// --- Init Zeebe Client with retry ---
	var zb *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zb, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

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

	// --- Init Elasticsearch; index-order needs it ---
	var orderIndex *search.OrderIndex
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("order indexing disabled", zap.Error(err))
		} else {
			orderIndex = search.NewOrderIndex(esClient.Client, cfg.Database.Elasticsearch.OrderIndex, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	chats := store.NewChatStore(pg.DB)
	profiles := store.NewProfileStore(pg.DB)

	var workers []worker.JobWorker
	start := func(taskType string, handle camunda.HandlerFunc) {
		if jw := camunda.StartWorker(zb.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handle, obs, log); jw != nil {
			workers = append(workers, jw)
		}
	}

	// --- Booking fulfilment ---
	{
		handler, err := vbd.NewHandler(&vbd.Config{
			Timeout:     taskTimeout(cfg, reg, vbd.TaskType),
			InputSchema: reg.InputSchema(vbd.TaskType),
		}, booking.NewValidator(clock, cfg.Location()), booking.DefaultCatalogue(), log)
		if err != nil {
			zapLog.Fatal("validate-booking-data setup failed", zap.Error(err))
		}
		start(vbd.TaskType, handler.Handle)
	}
	{
		handler := cor.NewHandler(&cor.Config{
			Timeout:  taskTimeout(cfg, reg, cor.TaskType),
			Currency: cfg.Booking.Currency,
		}, store.NewOrderStore(pg.DB, log), booking.DefaultCatalogue(), clock, log)
		start(cor.TaskType, handler.Handle)
	}
	{
		handler := sbn.NewHandler(&sbn.Config{
			Timeout: taskTimeout(cfg, reg, sbn.TaskType),
		}, notify.FromConfig(ctx, cfg, log), log)
		start(sbn.TaskType, handler.Handle)
	}
	if cfg.Integrations.Zoho.APIKey != "" || cfg.Integrations.Zoho.AuthToken != "" {
		crmClient := zoho.NewCRMClient(cfg.Integrations.Zoho.BaseURL, cfg.Integrations.Zoho.APIKey, cfg.Integrations.Zoho.AuthToken)
		handler := scc.NewHandler(&scc.Config{
			Timeout: taskTimeout(cfg, reg, scc.TaskType),
		}, crm.NewSyncer(crmClient, log), log)
		start(scc.TaskType, handler.Handle)
	} else {
		zapLog.Info("zoho credentials missing, worker not started", zap.String("taskType", scc.TaskType))
	}
	if orderIndex != nil {
		handler := ido.NewHandler(&ido.Config{
			Timeout: taskTimeout(cfg, reg, ido.TaskType),
		}, orderIndex, log)
		start(ido.TaskType, handler.Handle)
	} else {
		zapLog.Info("elasticsearch not configured, worker not started", zap.String("taskType", ido.TaskType))
	}

	// --- Visa eligibility and concierge ---
	{
		analyst := visa.NewAnalysisClient(cfg.APIs.VisaAnalysis.BaseURL, cfg.APIs.VisaAnalysis.APIKey, config.GetDuration(cfg.APIs.VisaAnalysis.Timeout))
		evaluator := visa.NewEvaluator(analyst, rdb.Client, config.GetDuration(cfg.APIs.VisaAnalysis.CacheTTL), log)
		handler := ave.NewHandler(&ave.Config{
			Timeout: taskTimeout(cfg, reg, ave.TaskType),
		}, evaluator, log)
		start(ave.TaskType, handler.Handle)
	}
	{
		generator := concierge.NewGenAIClient(cfg.APIs.GenAI.BaseURL, cfg.APIs.GenAI.APIKey, config.GetDuration(cfg.APIs.GenAI.Timeout))
		chat := concierge.NewService(concierge.Config{
			MaxTokens:   cfg.APIs.GenAI.MaxTokens,
			Temperature: cfg.APIs.GenAI.Temperature,
			Timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
		}, generator, chats, profiles, rdb.Client, clock, log)
		handler := cr.NewHandler(&cr.Config{
			Timeout: taskTimeout(cfg, reg, cr.TaskType),
		}, chat, log)
		start(cr.TaskType, handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Int("running", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zb.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "zeebe unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
	}
	for _, jw := range workers {
		jw.AwaitClose()
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}
	if err := zb.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// taskTimeout prefers the activity registry's timeout over the worker config.
func taskTimeout(cfg *config.Config, reg *registry.ActivityRegistry, taskType string) time.Duration {
	def := config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	a, ok := reg.Find(taskType)
	if !ok {
		return def
	}
	return a.TimeoutDuration(def)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
