// Package server contains the HTTP and WebSocket handlers of the FRA Atlas API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "fraatlas/docs" // swagger docs
	"fraatlas/internal/cache"
	"fraatlas/internal/config"
	"fraatlas/internal/database"
	"fraatlas/internal/email"
	"fraatlas/internal/featureflags"
	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/notifications"
	"fraatlas/internal/ocr"
	"fraatlas/internal/repository"
	"fraatlas/internal/schemes"
	"fraatlas/internal/service"
	"fraatlas/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators built outside the server. Nil Store falls back
// to the configured backend; nil Extractor and Mailer disable those features.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Store     storage.ObjectStore
	Extractor ocr.Extractor
	Gemini    ocr.Extractor
	Mailer    email.Sender
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	logger         *slog.Logger

	tokens       *middleware.TokenManager
	rateLimiter  *middleware.RateLimiter
	featureFlags *featureflags.Manager
	store        storage.ObjectStore
	notifier     *notifications.Notifier
	hub          *notifications.Hub

	profileRepo repository.ProfileRepository

	accounts      *service.AccountService
	profiles      *service.ProfileService
	claims        *service.ClaimService
	exports       *service.ExportService
	extraction    *service.ExtractionService
	notifications *service.NotificationService
}

// NewServer connects to the database and Redis and builds the upstream
// clients from cfg.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	store, err := NewObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	primary, gemini, err := NewExtractors(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, Deps{
		DB:        db,
		Redis:     cache.GetClient(),
		Store:     store,
		Extractor: primary,
		Gemini:    gemini,
		Mailer:    NewMailer(cfg),
	})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with sqlite, miniredis and in-memory stubs.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	store := deps.Store
	if store == nil {
		var err error
		if store, err = NewObjectStore(context.Background(), cfg); err != nil {
			return nil, err
		}
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)
	userRepo := repository.NewUserRepository(deps.DB)
	profileRepo := repository.NewProfileRepository(deps.DB)
	claimRepo := repository.NewClaimRepository(deps.DB)
	actionRepo := repository.NewAdminActionRepository(deps.DB)
	digitizationRepo := repository.NewDigitizationRepository(deps.DB)
	notificationRepo := repository.NewNotificationRepository(deps.DB)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("fra-atlas-api"),
		logger:         middleware.Component("server"),
		tokens:         middleware.NewTokenManager(cfg.JWTSecret),
		rateLimiter:    middleware.NewRateLimiter(deps.Redis, cfg.Env),
		featureFlags:   flags,
		store:          store,
		notifier:       notifications.NewNotifier(deps.Redis),
		hub:            notifications.NewHub(notifications.HubOptions{}),
		profileRepo:    profileRepo,
	}

	s.notifications = service.NewNotificationService(notificationRepo, profileRepo, s.notifier, deps.Mailer, flags)
	s.accounts = service.NewAccountService(userRepo, profileRepo, actionRepo)
	s.profiles = service.NewProfileService(profileRepo, store)
	s.claims = service.NewClaimService(service.ClaimDeps{
		Claims:              claimRepo,
		Profiles:            profileRepo,
		Digitizations:       digitizationRepo,
		Store:               store,
		Notifier:            s.notifications,
		Schemes:             schemes.Default(),
		DocumentMaxUploadMB: cfg.DocumentMaxUploadMB,
	})
	s.exports = service.NewExportService(claimRepo)
	s.extraction = service.NewExtractionService(service.ExtractionDeps{
		Primary:       deps.Extractor,
		Gemini:        deps.Gemini,
		Digitizations: digitizationRepo,
		Flags:         flags,
	})

	return s, nil
}

// NewObjectStore builds the object store selected by STORAGE_BACKEND.
func NewObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalStore(cfg.StorageLocalDir, cfg.StoragePublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		return store, nil
	}
}

// NewExtractors returns the configured OCR provider and, when a Gemini key is
// set, the Gemini client used for the gemini_ocr rollout. Both are nil
// interfaces when unconfigured.
func NewExtractors(ctx context.Context, cfg *config.Config) (primary, gemini ocr.Extractor, err error) {
	if cfg.GeminiAPIKey != "" {
		client, err := ocr.NewGeminiClient(ctx, ocr.GeminiOptions{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			ImagePolicy: ocr.ImagePolicy{
				AllowHTTP:    cfg.AIFetchPrivateImages,
				AllowPrivate: cfg.AIFetchPrivateImages,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		gemini = client
	}

	switch cfg.AIProvider {
	case ocr.ProviderGemini:
		primary = gemini
	default:
		if cfg.AIGatewayAPIKey != "" {
			primary = ocr.NewGatewayClient(cfg.AIGatewayURL, cfg.AIGatewayAPIKey, cfg.AIModel, nil)
		}
	}
	return primary, gemini, nil
}

// NewMailer returns the Resend client, or nil when no API key is configured.
func NewMailer(cfg *config.Config) email.Sender {
	client := email.NewClient(cfg.EmailAPIURL, cfg.ResendAPIKey, cfg.EmailFrom, nil)
	if !client.Configured() {
		return nil
	}
	return client
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate request, trace and user IDs
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Storage objects are embedded by the frontend, so they skip helmet's
	// cross-origin resource policy.
	app.Use(helmet.New(helmet.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/storage/")
		},
	}))

	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:8080,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		ExposeHeaders:    "Content-Disposition, X-Trace-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	if local, ok := s.store.(*storage.LocalStore); ok {
		app.Static("/storage", local.Root())
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", s.rateLimiter.Handler("signup", 5, 10*time.Minute, middleware.FailOpen), s.Signup)
	auth.Post("/login", s.rateLimiter.Handler("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	functions := api.Group("/functions")
	functions.Post("/create-official", s.AuthRequired(), s.CreateOfficial)
	functions.Post("/export-claims", s.AuthRequired(), s.ExportClaims)
	functions.Post("/extract-text",
		s.rateLimiter.Handler("extract_text", 20, time.Minute, middleware.FailOpen), s.ExtractText)
	functions.Post("/send-notification-email", s.AuthRequired(),
		s.RoleRequired(models.RoleOfficial), s.SendNotificationEmail)

	api.Get("/schemes", s.GetSchemes)

	protected := api.Group("", s.AuthRequired())

	claims := protected.Group("/claims")
	claims.Post("/", s.rateLimiter.Handler("create_claim", 10, time.Minute, middleware.FailOpen), s.CreateClaim)
	claims.Get("/", s.ListClaims)
	// Define specific routes BEFORE generic /:id routes
	claims.Get("/map", s.GetClaimMap)
	claims.Post("/bulk-status", s.RoleRequired(models.RoleOfficial), s.BulkUpdateClaimStatus)
	claims.Patch("/:id/status", s.RoleRequired(models.RoleOfficial), s.UpdateClaimStatus)
	claims.Post("/:id/documents", s.UploadClaimDocuments)
	claims.Delete("/:id/documents/:docId", s.DeleteClaimDocument)
	claims.Get("/:id/schemes", s.GetClaimSchemes)
	claims.Get("/:id", s.GetClaim)

	protected.Get("/analytics/claims",
		s.RoleRequired(models.RoleOfficial, models.RoleSuperAdmin), s.GetClaimAnalytics)
	protected.Get("/search", s.rateLimiter.Handler("search", 30, time.Minute, middleware.FailOpen), s.Search)

	digitizations := protected.Group("/digitizations")
	digitizations.Get("/", s.ListDigitizations)
	digitizations.Get("/:id", s.GetDigitization)

	profile := protected.Group("/profile")
	profile.Get("/", s.GetProfile)
	profile.Put("/", s.UpdateProfile)
	profile.Post("/avatar", s.rateLimiter.Handler("avatar", 10, time.Hour, middleware.FailOpen), s.UploadAvatar)

	notificationRoutes := protected.Group("/notifications")
	notificationRoutes.Get("/", s.ListNotifications)
	notificationRoutes.Post("/:id/read", s.MarkNotificationRead)

	// WebSocket ticket issuance; browsers cannot set headers on the upgrade.
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	admin := protected.Group("/admin", s.RoleRequired(models.RoleSuperAdmin))
	admin.Get("/profiles", s.ListProfiles)
	admin.Put("/profiles/:userId/role", s.ChangeRole)
	admin.Get("/actions", s.ListAdminActions)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: the
// service degrades to uncached reads without it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "FRA Atlas API",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "FRA Atlas API",
		BodyLimit: (s.documentLimitMB()*maxDocumentsPerRequest + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, &models.AppError{Code: "HTTP_ERROR", Message: fe.Message})
			}
			s.logger.ErrorContext(c.UserContext(), "unhandled error", slog.Any("error", err))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				s.logger.Error("failed to start hub wiring", slog.String("hub", s.hub.Name()), slog.Any("error", err))
			}
		}()
	}

	s.logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the pub/sub subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			s.logger.Error("error shutting down HTTP server", slog.Any("error", err))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		s.logger.Error("error shutting down hub", slog.Any("error", err))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			s.logger.Error("error closing sql DB", slog.Any("error", cerr))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			s.logger.Error("error closing redis", slog.Any("error", rerr))
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// DB returns the primary database handle.
func (s *Server) DB() *gorm.DB { return s.db }
