// Package api wires together all HTTP routes for the PropertyDesk API.
//
// Route grouping:
//   - Public reads (property listing, published reviews, landlord profiles)
//     run with optional authentication. A caller who sends a valid token is
//     identified so owners can see their own unpublished records.
//   - Everything else under /api/v1 requires a bearer token. Access to a
//     particular record is decided by the services from the caller's
//     relationship to the property, never by route.
//   - /health, /ready and /version are unauthenticated and unaudited.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/api/handlers"
	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/audit"
	"github.com/propertydesk/propertydesk/internal/cache"
	"github.com/propertydesk/propertydesk/internal/config"
	"github.com/propertydesk/propertydesk/internal/db/repositories"
	"github.com/propertydesk/propertydesk/internal/jobs"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/safego"
	"github.com/propertydesk/propertydesk/internal/services"
	"github.com/propertydesk/propertydesk/internal/storage"

	// Import storage backends to register them
	_ "github.com/propertydesk/propertydesk/internal/storage/azure"
	_ "github.com/propertydesk/propertydesk/internal/storage/gcs"
	_ "github.com/propertydesk/propertydesk/internal/storage/local"
	_ "github.com/propertydesk/propertydesk/internal/storage/s3"
)

// Version is reported by /version. Release builds override it with
// -ldflags "-X github.com/propertydesk/propertydesk/internal/api.Version=...".
var Version = "0.1.0"

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	reminder    *jobs.InspectionReminder
	retention   *jobs.AuditRetention
	rateLimiter *middleware.RateLimiter
	shipper     *audit.MultiShipper
	redis       *redis.Client
	cancel      context.CancelFunc
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.reminder != nil {
		bg.reminder.Stop()
	}
	if bg.retention != nil {
		bg.retention.Stop()
	}
	if bg.cancel != nil {
		bg.cancel()
	}
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	if bg.redis != nil {
		if err := bg.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// Services are the lifecycle services exposed over HTTP.
type Services struct {
	Properties  *services.PropertyService
	Conditions  *services.ConditionReportService
	Inspections *services.InspectionService
	Reviews     *services.ReviewService
	Maintenance *services.MaintenanceService
	Landlords   *services.LandlordService
}

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Infra are the collaborators of the middleware chain and system routes.
// Nil Limiter, AuditLog and Shipper disable the corresponding feature.
type Infra struct {
	DB       Pinger
	Storage  storage.Storage
	Users    middleware.UserProvisioner
	Limiter  middleware.Limiter
	AuditLog middleware.AuditLogWriter
	Shipper  audit.Shipper
}

// NewRouter builds the services over Postgres, connects Redis when
// configured, starts the background jobs and returns the routed engine.
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	policy, err := access.NewPolicy()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load access policy: %w", err)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	propertyRepo := repositories.NewPropertyRepository(db)
	reportRepo := repositories.NewConditionReportRepository(db)
	inspectionRepo := repositories.NewInspectionRepository(db)
	reviewRepo := repositories.NewReviewRepository(db)
	maintenanceRepo := repositories.NewMaintenanceRepository(db)
	landlordRepo := repositories.NewLandlordProfileRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	bg := &BackgroundServices{}
	jobCtx, cancel := context.WithCancel(context.Background())
	bg.cancel = cancel

	if cfg.Redis.Enabled() {
		client, err := cache.Connect(jobCtx, cfg.Redis)
		if err != nil {
			// Cache and distributed limits degrade; the API keeps serving.
			slog.Warn("redis unavailable, continuing without it", "error", err)
		} else {
			bg.redis = client
			slog.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	var listing services.ListingCache
	if cfg.Cache.Enabled && bg.redis != nil {
		listing = cache.NewListing(bg.redis, cfg.Cache.ListingTTL, cfg.Cache.KeyPrefix)
	}

	deps := services.Deps{Policy: policy, Properties: propertyRepo, Users: userRepo}
	svc := Services{
		Properties:  services.NewPropertyService(deps, listing),
		Conditions:  services.NewConditionReportService(deps, reportRepo, storageBackend),
		Inspections: services.NewInspectionService(deps, inspectionRepo),
		Reviews:     services.NewReviewService(deps, reviewRepo),
		Maintenance: services.NewMaintenanceService(deps, maintenanceRepo),
		Landlords:   services.NewLandlordService(deps, landlordRepo),
	}

	infra := Infra{DB: db, Storage: storageBackend, Users: userRepo}

	if cfg.Security.RateLimiting.Enabled {
		rlCfg := middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
			BurstSize:         cfg.Security.RateLimiting.Burst,
		}
		if cfg.Security.RateLimiting.Backend == "redis" && bg.redis != nil {
			infra.Limiter = middleware.NewRedisRateLimiter(bg.redis, rlCfg)
		} else {
			limiter := middleware.NewRateLimiter(rlCfg)
			bg.rateLimiter = limiter
			infra.Limiter = limiter
		}
		slog.Info("rate limiting enabled", "backend", infra.Limiter.Backend(), "rpm", infra.Limiter.Limit())
	}

	if cfg.Audit.Enabled {
		infra.AuditLog = auditRepo
		shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			bg.Shutdown()
			return nil, nil, fmt.Errorf("failed to configure audit shippers: %w", err)
		}
		if shipper.Len() > 0 {
			bg.shipper = shipper
			infra.Shipper = shipper
		}
	}

	bg.reminder = jobs.NewInspectionReminder(inspectionRepo, propertyRepo, userRepo, jobs.NewSMTPMailer(cfg.Notifications.SMTP), &cfg.Notifications)
	safego.Go("inspection-reminder", func() { bg.reminder.Start(jobCtx) })

	bg.retention = jobs.NewAuditRetention(auditRepo, cfg.Audit.RetentionDays)
	safego.Go("audit-retention", func() { bg.retention.Start(jobCtx) })

	return newEngine(cfg, svc, infra), bg, nil
}

// recoverPanic answers a handler panic with the error envelope.
func recoverPanic(c *gin.Context, recovered any) {
	slog.Error("panic serving request",
		"request_id", middleware.RequestIDFrom(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"panic", recovered,
		"stack", string(debug.Stack()))
	respond.Fail(c, http.StatusInternalServerError, "Internal server error")
}

// newEngine installs the middleware chain and every route.
func newEngine(cfg *config.Config, svc Services, infra Infra) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(gin.CustomRecovery(recoverPanic))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(CORSMiddleware(cfg))

	router.GET("/health", healthCheckHandler(infra.DB))
	router.GET("/ready", readinessHandler(infra.DB, infra.Storage))
	router.GET("/version", versionHandler())

	authn := middleware.NewAuthenticator(infra.Users, cfg.Auth.AutoProvision)
	var tail []gin.HandlerFunc
	if infra.Limiter != nil {
		tail = append(tail, middleware.RateLimitMiddleware(infra.Limiter))
	}
	if infra.AuditLog != nil || infra.Shipper != nil {
		tail = append(tail, middleware.AuditMiddleware(infra.AuditLog, infra.Shipper, &cfg.Audit))
	}

	properties := handlers.NewPropertyHandlers(svc.Properties)
	conditions := handlers.NewConditionReportHandlers(svc.Conditions, cfg.Server.MaxUploadMB)
	inspections := handlers.NewInspectionHandlers(svc.Inspections)
	reviews := handlers.NewReviewHandlers(svc.Reviews)
	maintenance := handlers.NewMaintenanceHandlers(svc.Maintenance)
	landlords := handlers.NewLandlordHandlers(svc.Landlords)
	files := handlers.NewFileHandlers(svc.Conditions)

	apiV1 := router.Group("/api/v1")

	public := apiV1.Group("")
	public.Use(authn.Optional())
	public.Use(tail...)
	{
		public.GET("/properties", properties.List)
		public.GET("/properties/:id", properties.Get)
		public.GET("/reviews/property/:propertyId", reviews.ListByProperty)
		public.GET("/reviews/:id", reviews.Get)
		public.GET("/landlords/:id", landlords.Get)
	}

	authed := apiV1.Group("")
	authed.Use(authn.Required())
	authed.Use(tail...)
	{
		authed.POST("/properties", properties.Create)
		authed.PATCH("/properties/:id", properties.Update)
		authed.DELETE("/properties/:id", properties.Delete)
		authed.POST("/properties/:id/tenants", properties.AddTenant)
		authed.DELETE("/properties/:id/tenants/:tenantId", properties.RemoveTenant)

		authed.POST("/conditions", conditions.Create)
		authed.GET("/conditions/property/:propertyId", conditions.ListByProperty)
		authed.GET("/conditions/:id", conditions.Get)
		authed.PATCH("/conditions/:id", conditions.Update)
		authed.DELETE("/conditions/:id", conditions.Delete)
		authed.POST("/conditions/:id/sign", conditions.Sign)
		authed.POST("/conditions/:id/attachments", conditions.Attach)

		authed.POST("/inspections", inspections.Create)
		authed.GET("/inspections/property/:propertyId", inspections.ListByProperty)
		authed.GET("/inspections/:id", inspections.Get)
		authed.PATCH("/inspections/:id", inspections.Update)
		authed.DELETE("/inspections/:id", inspections.Delete)
		authed.POST("/inspections/:id/confirm", inspections.Confirm)
		authed.POST("/inspections/:id/complete", inspections.Complete)

		authed.POST("/reviews", reviews.Create)
		authed.PATCH("/reviews/:id", reviews.Update)
		authed.DELETE("/reviews/:id", reviews.Delete)
		authed.POST("/reviews/:id/respond", reviews.Respond)

		authed.POST("/maintenance", maintenance.Create)
		authed.GET("/maintenance/property/:propertyId", maintenance.ListByProperty)
		authed.GET("/maintenance/:id", maintenance.Get)
		authed.PATCH("/maintenance/:id", maintenance.Update)
		authed.DELETE("/maintenance/:id", maintenance.Delete)
		authed.POST("/maintenance/:id/resolve", maintenance.Resolve)

		authed.POST("/landlords", landlords.Create)
		authed.PATCH("/landlords/:id", landlords.Update)
		authed.DELETE("/landlords/:id", landlords.Delete)
		authed.POST("/landlords/:id/verify", landlords.Verify)

		authed.GET("/files/*path", files.Serve)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Route not found"})
	})

	return router
}

// healthCheckHandler returns the liveness status of the service
func healthCheckHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the storage backend so
// that a readiness gate fails when attachment uploads would error.
func readinessHandler(db Pinger, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe with a known-absent path: Exists exercises credentials and
		// connectivity without creating state.
		if storageBackend != nil {
			if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
				checks["storage"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "storage backend not ready",
				})
				return
			}
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// CORSMiddleware answers preflight requests and sets CORS headers for
// allowed origins.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := cfg.Security.CORS.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	}
	allowMethods := strings.Join(methods, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
