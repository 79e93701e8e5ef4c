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

	"github.com/straye-as/funnel-api/docs"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/cache"
	"github.com/straye-as/funnel-api/internal/config"
	"github.com/straye-as/funnel-api/internal/database"
	"github.com/straye-as/funnel-api/internal/http/handler"
	"github.com/straye-as/funnel-api/internal/http/middleware"
	"github.com/straye-as/funnel-api/internal/http/router"
	"github.com/straye-as/funnel-api/internal/jobs"
	"github.com/straye-as/funnel-api/internal/logger"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/service"
	"github.com/straye-as/funnel-api/internal/storage"
	"github.com/straye-as/funnel-api/internal/warehouse"
	"go.uber.org/zap"
)

// @title Straye Funnel API
// @version 1.0
// @description Lead funnel analytics: leakage, stage velocity, bottlenecks and activity heatmaps, plus the lead, stage and user administration behind them

// @contact.name API Support
// @contact.email support@straye.io

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system integrations. Not accepted on admin routes.

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" || basicCfg.App.Environment == "" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	} else {
		docs.SwaggerInfo.Host = ""
	}

	// Full configuration. Staging and production read secrets from Key Vault.
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Analytics.Validate(); err != nil {
		return fmt.Errorf("invalid analytics configuration: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	mediaStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	analyticsCache, err := cache.New(&cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer func() { _ = analyticsCache.Close() }()

	// Warehouse mirror of the stage ledger. Required only when it is the ledger source.
	var whClient *warehouse.Client
	if cfg.Warehouse.Enabled {
		whClient, err = warehouse.NewClient(&cfg.Warehouse, log)
		if err != nil {
			if cfg.Analytics.LedgerSource == "warehouse" {
				return fmt.Errorf("warehouse is the ledger source but is unavailable: %w", err)
			}
			log.Warn("Warehouse connection failed, continuing without it", zap.Error(err))
			whClient = nil
		}
	}
	defer func() {
		if whClient != nil {
			_ = whClient.Close()
		}
	}()

	// Repositories
	brandRepo := repository.NewBrandRepository(db)
	funnelRepo := repository.NewFunnelRepository(db)
	stageRepo := repository.NewStageRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	historyRepo := repository.NewLeadStageHistoryRepository(db)
	activityRepo := repository.NewLeadActivityRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)
	storedStatsRepo := repository.NewStoredStatsRepository(db)

	// Analytics engine
	stageRegistry := cache.NewStageRegistry(stageRepo, analyticsCache, cfg.Cache.StageTTLDuration(), log)

	var transitions analytics.TransitionSource = historyRepo
	if cfg.Analytics.LedgerSource == "warehouse" {
		if whClient == nil {
			return errors.New("analytics.ledgerSource is warehouse but warehouse.enabled is false")
		}
		mirror, err := warehouse.NewLedgerMirror(whClient, cfg.Warehouse.LedgerTable, log)
		if err != nil {
			return fmt.Errorf("failed to configure ledger mirror: %w", err)
		}
		transitions = mirror
	}

	heatmapOpts, err := analytics.ParseHeatmapOptions(
		cfg.Analytics.Heatmap.Timezone,
		cfg.Analytics.Heatmap.Policy,
		cfg.Analytics.Heatmap.LowMax,
		cfg.Analytics.Heatmap.MediumMax,
	)
	if err != nil {
		return fmt.Errorf("invalid heatmap configuration: %w", err)
	}
	engine := analytics.NewEngine(transitions, leadRepo, stageRegistry, activityRepo, analytics.EngineConfig{
		Timeout: cfg.Analytics.QueryTimeoutDuration(),
		Thresholds: analytics.Thresholds{
			HighHours:     cfg.Analytics.Bottleneck.HighHours,
			MediumHours:   cfg.Analytics.Bottleneck.MediumHours,
			MinSampleSize: cfg.Analytics.Bottleneck.MinSampleSize,
		},
		Heatmap:       heatmapOpts,
		HeatmapSource: analytics.HeatmapSource(cfg.Analytics.Heatmap.Source),
	}, log)
	log.Info("Analytics engine configured",
		zap.String("ledger_source", cfg.Analytics.LedgerSource),
		zap.String("heatmap_source", cfg.Analytics.Heatmap.Source),
		zap.Duration("timeout", cfg.Analytics.QueryTimeoutDuration()),
	)

	// Services
	auditLogService := service.NewAuditLogService(auditLogRepo, log)
	analyticsService := service.NewAnalyticsService(
		engine, brandRepo, funnelRepo, storedStatsRepo, analyticsCache,
		&cfg.Analytics, cfg.Cache.SummaryTTLDuration(), log,
	)
	adminService := service.NewAdminService(profileRepo, auditLogService, log, db)
	brandService := service.NewBrandService(brandRepo, profileRepo, log)
	funnelService := service.NewFunnelService(funnelRepo, brandRepo, log, db)
	stageService := service.NewStageService(stageRepo, stageRegistry, stageRegistry, mediaStorage, log)
	leadService := service.NewLeadService(leadRepo, historyRepo, stageRepo, funnelRepo, brandRepo, log, db)
	activityService := service.NewActivityService(activityRepo, leadRepo, log)

	// Middleware
	jwtValidator := auth.NewJWTValidator(&cfg.Auth)
	authorizer := auth.NewAuthorizer(jwtValidator, profileRepo, log)
	authMiddleware := auth.NewMiddleware(cfg, jwtValidator, authorizer, log)
	brandScope := middleware.NewBrandScopeMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(cfg, log, db, analyticsCache, whClient, authMiddleware, brandScope, rateLimiter, router.Handlers{
		Analytics: handler.NewAnalyticsHandler(analyticsService, log),
		Admin:     handler.NewAdminHandler(adminService, auditLogService, log),
		Brand:     handler.NewBrandHandler(brandService, funnelService, log),
		Funnel:    handler.NewFunnelHandler(funnelService, log),
		Stage:     handler.NewStageHandler(stageService, cfg.Storage.MaxUploadSizeMB, log),
		Lead:      handler.NewLeadHandler(leadService, log),
		Activity:  handler.NewActivityHandler(activityService, log),
	})

	// Background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.CacheWarmEnabled && cfg.Cache.Mode != cache.ModeNone {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterCacheWarmJob(
			scheduler,
			brandRepo,
			analyticsService,
			log,
			cfg.Jobs.CacheWarmCron,
			cfg.Jobs.TimeoutDuration(),
			true,
		); err != nil {
			log.Error("Failed to register cache warm job", zap.Error(err))
			scheduler = nil
		} else {
			scheduler.Start()
		}
	} else {
		log.Info("Analytics cache warm-up disabled",
			zap.Bool("job_enabled", cfg.Jobs.CacheWarmEnabled),
			zap.String("cache_mode", cfg.Cache.Mode),
		)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}
