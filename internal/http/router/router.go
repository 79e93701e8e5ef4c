package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/cache"
	"github.com/straye-as/funnel-api/internal/config"
	"github.com/straye-as/funnel-api/internal/database"
	"github.com/straye-as/funnel-api/internal/http/handler"
	"github.com/straye-as/funnel-api/internal/http/middleware"
	"github.com/straye-as/funnel-api/internal/warehouse"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/funnel-api/docs" // Import generated swagger docs
)

const readinessTimeout = 3 * time.Second

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Analytics *handler.AnalyticsHandler
	Admin     *handler.AdminHandler
	Brand     *handler.BrandHandler
	Funnel    *handler.FunnelHandler
	Stage     *handler.StageHandler
	Lead      *handler.LeadHandler
	Activity  *handler.ActivityHandler
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	cache          cache.Cache
	warehouse      *warehouse.Client
	authMiddleware *auth.Middleware
	brandScope     *middleware.BrandScopeMiddleware
	rateLimiter    *middleware.RateLimiter
	handlers       Handlers
}

// NewRouter wires the API. analyticsCache and warehouseClient may be nil.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	analyticsCache cache.Cache,
	warehouseClient *warehouse.Client,
	authMiddleware *auth.Middleware,
	brandScope *middleware.BrandScopeMiddleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		cache:          analyticsCache,
		warehouse:      warehouseClient,
		authMiddleware: authMiddleware,
		brandScope:     brandScope,
		rateLimiter:    rateLimiter,
		handlers:       handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	h := rt.handlers
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(middleware.TagUser)
		r.Use(rt.brandScope.Scope)
		r.Use(rt.rateLimiter.LimitByUser)
		r.Use(chimw.Timeout(rt.cfg.Server.RequestTimeoutDuration()))

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", h.Analytics.Summary)
			r.Get("/leakage", h.Analytics.Leakage)
			r.Get("/velocity", h.Analytics.Velocity)
			r.Get("/bottlenecks", h.Analytics.Bottlenecks)
			r.Get("/heatmap", h.Analytics.Heatmap)
			r.With(rt.authMiddleware.RequireAdmin).Get("/reconciliation", h.Analytics.Reconciliation)
		})

		r.Route("/brands", func(r chi.Router) {
			r.Get("/", h.Brand.List)
			r.Post("/", h.Brand.Create)
			r.Get("/{id}", h.Brand.GetByID)
			r.Put("/{id}", h.Brand.Update)
			r.Delete("/{id}", h.Brand.Deactivate)
			r.Get("/{id}/funnels", h.Brand.ListFunnels)
		})

		r.Route("/funnels", func(r chi.Router) {
			r.Post("/", h.Funnel.Create)
			r.Get("/{id}", h.Funnel.GetByID)
			r.Put("/{id}", h.Funnel.Update)
			r.Post("/{id}/default", h.Funnel.SetDefault)
		})

		r.Route("/stages", func(r chi.Router) {
			r.Get("/", h.Stage.List)
			r.Get("/{id}", h.Stage.GetByID)
			r.Get("/{id}/media", h.Stage.DownloadMedia)

			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireAdmin)
				r.Post("/", h.Stage.Create)
				r.Put("/{id}", h.Stage.Update)
				r.Put("/{id}/script", h.Stage.UpdateScript)
				r.Post("/{id}/media", h.Stage.UploadMedia)
			})
		})

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.Lead.List)
			r.Post("/", h.Lead.Create)
			r.Get("/{id}", h.Lead.GetByID)
			r.Post("/{id}/stage", h.Lead.MoveStage)
			r.Put("/{id}/status", h.Lead.UpdateStatus)
			r.Get("/{id}/history", h.Lead.History)
			r.Get("/{id}/activities", h.Activity.List)
			r.Post("/{id}/activities", h.Activity.Create)
		})

		// Admin surface. RequireAdmin re-reads the stored role on every request.
		r.Route("/admin", func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireAdmin)
			r.Get("/users", h.Admin.ListUsers)
			r.Post("/users", h.Admin.CreateUser)
			r.Put("/users/{id}", h.Admin.UpdateUser)
			r.Delete("/users/{id}", h.Admin.DeleteUser)
			r.Get("/audit", h.Admin.ListAuditLogs)
		})
	})

	return r
}

func writeHealth(w http.ResponseWriter, healthy bool, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(r.Context(), rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeHealth(w, false, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}
	writeHealth(w, true, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// readiness checks every dependency the analytics path needs. The warehouse only
// counts when it is the configured ledger source.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	if rt.cache != nil {
		if err := cache.Ping(ctx, rt.cache); err != nil {
			rt.logger.Warn("Cache health check failed", zap.Error(err))
			checks["cache"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
		} else {
			checks["cache"] = map[string]interface{}{"status": "healthy", "mode": rt.cfg.Cache.Mode}
		}
	}

	if rt.warehouse.IsEnabled() {
		status := rt.warehouse.HealthCheck(ctx)
		checks["warehouse"] = status
		if status.Status != "healthy" {
			allHealthy = false
		}
	}

	status := "healthy"
	if !allHealthy {
		status = "unhealthy"
	}
	writeHealth(w, allHealthy, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
