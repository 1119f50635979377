package main

import (
	"context"
	"fmt"
	"idea-research/internal/api"
	"idea-research/internal/config"
	"idea-research/internal/database"
	"idea-research/internal/services"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// demoDelay paces the offline analyzer so progress is observable
const demoDelay = 300 * time.Millisecond

// analyzer is satisfied by both the OpenAI-backed and the offline analyzers
type analyzer interface {
	services.DirectAnalyzer
	services.AnalysisProvider
	services.OptionGenerator
}

// app holds the wired components of the service
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	worker      *services.WorkflowWorker
	research    *services.ResearchService
	hub         *services.ProgressHub
	maintenance *services.MaintenanceService
	jwtService  *services.JWTService
	registry    *prometheus.Registry
	storageDir  string
	closers     []func()
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newAnalyzer(cfg *config.Config, logger *slog.Logger) analyzer {
	if cfg.DemoMode {
		logger.Info("demo mode enabled, using the offline template analyzer")
		return services.NewTemplateAnalyzer(demoDelay)
	}
	return services.NewAIService(cfg.OpenAI, logger)
}

// buildApp wires every component. Optional backing stores that fail to
// connect are logged and replaced by their in-process fallback.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	an := newAnalyzer(cfg, logger)

	store := services.NewTaskStatusStore()
	a.hub = services.NewProgressHub(store, logger)
	sink := services.MultiSink{services.NewLogSink(logger), a.hub}

	a.worker = services.NewWorkflowWorker(
		store,
		services.NewTaskQueue(),
		services.NewAnalysisExecutors(an, an, store),
		sink,
		services.WorkerSettings{
			IdleWait:     cfg.Worker.IdleWait,
			ErrorBackoff: cfg.Worker.ErrorBackoff,
		},
		logger,
	)

	// Strategy persistence (optional MongoDB)
	var repo database.StrategyRepository = database.NewMemoryStrategyRepository()
	if cfg.MongoDB.Enabled() {
		mongoClient, err := database.NewMongoDBClient(cfg.MongoDB, logger)
		if err != nil {
			logger.Warn("failed to connect to MongoDB, strategies are kept in memory", "error", err)
		} else {
			repo = mongoClient
			a.closers = append(a.closers, func() { _ = mongoClient.Close() })
		}
	} else {
		logger.Info("MongoDB not configured, strategies are kept in memory")
	}

	// Task telemetry (optional InfluxDB)
	if cfg.InfluxDB.Enabled() {
		telemetry, err := database.NewInfluxTelemetry(cfg.InfluxDB, logger)
		if err != nil {
			logger.Warn("failed to connect to InfluxDB, task telemetry disabled", "error", err)
		} else {
			a.worker.AddRecorder(telemetry)
			a.closers = append(a.closers, telemetry.Close)
		}
	}

	// Metrics
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := services.NewTaskMetrics(a.registry, a.worker)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	a.worker.AddRecorder(metrics)

	// Reports
	storage, err := services.NewStorage(cfg.S3, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report storage: %w", err)
	}
	if local, ok := storage.(*services.LocalStorage); ok {
		a.storageDir = local.BasePath()
	}

	reports := services.ReportOptions{
		PDF:     services.NewPDFService(),
		Storage: storage,
	}
	if cfg.Email.APIKey != "" {
		reports.Mailer = services.NewEmailService(cfg.Email)
	} else {
		logger.Info("SendGrid API key not configured, report emails disabled")
	}

	pipeline := services.NewStrategyPipeline(an, an, logger)
	a.research = services.NewResearchService(a.worker, pipeline, repo, a.hub, reports, logger)

	if cfg.JWT.Secret != "" {
		a.jwtService = services.NewJWTService(cfg.JWT.Secret, cfg.JWT.TTL)
		if cfg.JWT.DevTokens {
			logger.Warn("JWT_DEV_TOKENS enabled, POST /api/auth/token signs tokens for any user id")
		}
	} else {
		logger.Warn("JWT_SECRET not set, research endpoints are unauthenticated")
	}

	a.maintenance, err = services.NewMaintenanceService(a.worker, services.MaintenanceSettings{
		Schedule:        cfg.Worker.MaintenanceSchedule,
		MaxTaskDuration: cfg.Worker.MaxTaskDuration,
		StatusRetention: cfg.Worker.StatusRetention,
	}, logger)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// router builds the gin engine serving the API
func (a *app) router() *gin.Engine {
	handlers := api.NewHandlers(
		a.worker,
		a.research,
		a.hub,
		a.jwtService,
		a.cfg.JWT.DevTokens,
		promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		a.storageDir,
		a.logger,
	)
	return api.SetupRoutes(handlers)
}

// newServer wraps the router in an http.Server listening on the configured address
func (a *app) newServer() *http.Server {
	return &http.Server{
		Addr:              a.cfg.Server.Host + ":" + a.cfg.Server.Port,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// close releases backing store connections
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// shutdown gracefully stops the HTTP server
func shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
