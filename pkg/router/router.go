package router

import (
	"net/http"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"victim-support/backend/internal/api"
	"victim-support/backend/internal/auth"
	"victim-support/backend/internal/ws"
	"victim-support/backend/pkg/config"
	"victim-support/backend/pkg/di"
	"victim-support/backend/pkg/errors"
	"victim-support/backend/pkg/jwt"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/middleware"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config

	ipLimiter   *middleware.RateLimiter
	userLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	// Use the container's logger
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestIDMiddleware())

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.MetricsMiddleware())

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	// Clients behind one address share a wider budget than a single user
	ipOptions := middleware.DefaultRateLimiterOptions()
	ipOptions.Limit = rate.Limit(cfg.Security.RateLimit * 4)
	ipOptions.Burst = cfg.Security.RateLimitBurst * 4
	userOptions := middleware.DefaultRateLimiterOptions()
	userOptions.Limit = rate.Limit(cfg.Security.RateLimit)
	userOptions.Burst = cfg.Security.RateLimitBurst
	userOptions.KeyFunc = middleware.UserKey
	userOptions.Surface = "http_user"

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		Config:      cfg,
		ipLimiter:   middleware.NewRateLimiter(container.Logger, ipOptions),
		userLimiter: middleware.NewRateLimiter(container.Logger, userOptions),
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	// Apply rate limiting to all routes
	r.Engine.Use(r.ipLimiter.Middleware())

	if r.Config.Observability.OpenAPISpec != "" {
		r.AddOpenAPIValidation(r.Config.Observability.OpenAPISpec)
	}

	r.setupHealthRoutes()
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Stored attachments are served under their public prefix; the spool
	// directory next to them stays private
	r.Engine.Static(path.Join(r.Config.Chat.PublicPrefix, "chat"), filepath.Join(r.Config.Chat.StorageRoot, "chat"))

	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWTService, r.Logger)
	authenticated := []gin.HandlerFunc{jwtAuth, auth.RequireIdentity(), r.userLimiter.Middleware()}

	chatController := api.NewChatController(r.Container.Chat, r.Logger.WithComponent("api"))
	liveController := api.NewLiveController(r.Container.Hub)

	// API version 1 routes
	v1 := r.Engine.Group("/api/v1")
	v1.Use(bodyLimit(r.Config.Security.MaxBodySize))

	victimRoutes := v1.Group("/chat")
	victimRoutes.Use(authenticated...)
	victimRoutes.Use(middleware.RequireAnyRole(jwt.RoleVictim, jwt.RoleAnonymous))
	chatController.RegisterVictimRoutes(victimRoutes)

	staffRoutes := v1.Group("/admin/chat")
	staffRoutes.Use(authenticated...)
	staffRoutes.Use(middleware.RequireAnyRole(jwt.RoleAdmin, jwt.RoleCounselor))
	chatController.RegisterStaffRoutes(staffRoutes, middleware.RequireRole(jwt.RoleAdmin))
	liveController.RegisterRoutes(staffRoutes)

	// WebSocket route
	wsHandler := ws.NewHandler(r.Container.Hub, r.Container.Chat, ws.HandlerConfig{
		SendQueueSize:  r.Config.Chat.SendQueueSize,
		MessageRate:    rate.Limit(r.Config.Chat.LiveRate),
		MessageBurst:   r.Config.Chat.LiveBurst,
		AllowedOrigins: r.Config.Security.AllowedOrigins,
	}, r.Logger.WithComponent("ws"))
	r.Engine.GET("/ws", jwtAuth, auth.RequireIdentity(), wsHandler.ServeWs)
}

// Close stops the background work of the router's middleware
func (r *Router) Close() {
	r.ipLimiter.Stop()
	r.userLimiter.Stop()
}

// bodyLimit caps request bodies outside multipart uploads, which carry
// their own limit
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.ContentType() != "multipart/form-data" {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// Enhance CORS middleware to explicitly allow WebSocket-specific headers
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAll {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
