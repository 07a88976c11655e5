package router

import (
	"time"

	"service-desk/backend/internal/api"
	"service-desk/backend/internal/ws"
	"service-desk/backend/pkg/config"
	"service-desk/backend/pkg/di"
	"service-desk/backend/pkg/errors"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Hub         *ws.Hub
	Config      *config.Config
	RateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// logger first so every later middleware sees the request id
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(container.Metrics.GinMiddleware())
	engine.Use(middleware.CORS())

	opts := middleware.DefaultRateLimiterOptions()
	if cfg.Security.RateLimit > 0 {
		opts.Limit = rate.Limit(cfg.Security.RateLimit)
	}
	if cfg.Security.RateLimitBurst > 0 {
		opts.Burst = cfg.Security.RateLimitBurst
	}

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		Hub:         container.Hub,
		Config:      cfg,
		RateLimiter: middleware.NewRateLimiter(container.Logger, opts),
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	userHandler := api.NewUserHandler(c.UserService)
	managerHandler := api.NewManagerHandler(c.ManagerService)
	taskHandler := api.NewTaskHandler(c.TaskService, c.MessageRouter, r.Config.Security.MaxUploadSize)
	blobHandler := api.NewBlobHandler(c.Blobs)

	v1 := r.Engine.Group("/api/v1")
	v1.Use(r.RateLimiter.Middleware())
	v1.Use(middleware.BodyLimit(r.Config.Security.MaxUploadSize + 1<<20))
	if validate := r.openAPIValidation(r.Config.Server.OpenAPISchema); validate != nil {
		v1.Use(validate)
	}
	{
		userHandler.RegisterRoutes(v1)
		managerHandler.RegisterRoutes(v1)
		taskHandler.RegisterRoutes(v1)
	}

	r.Engine.GET("/static/img/:name", blobHandler.Serve)

	r.setupHealthRoutes(v1)
	r.Engine.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	// WebSocket route
	r.Engine.GET("/ws", func(ctx *gin.Context) {
		ws.ServeWs(r.Hub, ctx)
	})
}
