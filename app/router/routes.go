// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/app/handlers"
	"github.com/kitsune-chat/Kitsune/app/middleware"
	"github.com/kitsune-chat/Kitsune/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	messageHandler    handlers.MessageHandlerInterface
	moderationHandler handlers.ModerationHandlerInterface
	complianceHandler handlers.ComplianceHandlerInterface
	authHandler       handlers.AuthHandlerInterface
	authMiddleware    *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	messageHandler handlers.MessageHandlerInterface,
	moderationHandler handlers.ModerationHandlerInterface,
	complianceHandler handlers.ComplianceHandlerInterface,
	authHandler handlers.AuthHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
) Router {
	// Configure Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Kitsune API",
		ServerHeader: "Kitsune",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second, // reply generation can take most of a minute
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:               app,
		messageHandler:    messageHandler,
		moderationHandler: moderationHandler,
		complianceHandler: complianceHandler,
		authHandler:       authHandler,
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Prometheus scrape endpoint (outside the API group, no rate limiting)
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// API documentation route (development only)
	if os.Getenv("APP_ENV") == "development" || os.Getenv("APP_ENV") == "local" {
		api.Get("/docs", r.getAPIDocumentation)
		log.Println("API documentation enabled for development")
	}

	// Apply general rate limiting to all API routes (aligned with nginx)
	api.Use(limiter.New(limiter.Config{
		Max:        2000,            // Maximum 2000 requests (matches nginx api zone)
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks
			return c.Path() == "/api/v1/health"
		},
	}))

	// Fan-facing message pipeline
	api.Post("/messages", r.messageHandler.SubmitMessage)
	api.Post("/fans/:uuid/consent", r.messageHandler.RecordConsent)

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")

	// Apply stricter rate limiting to auth endpoints (aligned with nginx)
	auth.Use(limiter.New(limiter.Config{
		Max:        20,              // Maximum 20 requests (matches nginx auth zone)
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	}))

	// Auth endpoints
	auth.Post("/login", r.authHandler.Login)
	auth.Post("/refresh", r.authHandler.Refresh)

	// Creator-facing endpoints require a valid access token
	moderation := api.Group("/moderation", r.authMiddleware.Authenticate())
	moderation.Get("/queue", r.moderationHandler.ListQueue)
	moderation.Get("/queue/status-counts", r.moderationHandler.DailyStatusCounts)
	moderation.Post("/queue/:uuid/resolve", r.moderationHandler.ResolveItem)

	compliance := api.Group("/compliance", r.authMiddleware.Authenticate())
	compliance.Get("/score", r.complianceHandler.Score)
	compliance.Get("/report", r.complianceHandler.Report)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' https:; connect-src 'self' https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"https://kitsune-chat.com",
			"https://api.kitsune-chat.com",
			"https://studio.kitsune-chat.com",
			"https://monitoring.kitsune-chat.com",
		},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// Skip compression for spreadsheet exports
			contentType := c.Get("Content-Type")
			return contains(contentType, "officedocument")
		},
	}))

	// Advanced logging middleware
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks and metrics scrapes
			return c.Path() == "/api/v1/health" || c.Path() == "/metrics"
		},
	}))

	// Request counters and latency histograms
	r.app.Use(middleware.Metrics())

	// Custom security middleware
	r.app.Use(r.securityMiddleware)

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Custom security middleware
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	// Add security headers
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
	c.Set("Server", "Kitsune")

	return c.Next()
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "kitsune-api",
		},
	})
}

// API documentation endpoint
func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	docs := GetRouteDocumentation()
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "Kitsune API Documentation",
			"version":     "1.0.0",
			"description": "Persona messaging safety and moderation API",
			"endpoints":   docs,
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Log the error
	log.Printf("Error %d: %v", code, err)

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	// Return JSON error response
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// Helper functions

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// contains checks if a string contains a substring
func contains(str, substr string) bool {
	return strings.Contains(str, substr)
}

// GetRouteDocumentation returns API documentation
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/messages",
			"description": "Submit a fan message through the safety pipeline",
			"parameters": map[string]any{
				"persona_uuid":    "string (required) - Target persona UUID",
				"fan_uuid":        "string (required) - Sending fan UUID",
				"content":         "string (required) - Message text, up to 4000 characters",
				"platform_handle": "string (optional) - Fan handle on the origin platform",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/fans/:uuid/consent",
			"description": "Record a fan's age and romantic-content consent",
			"parameters": map[string]any{
				"uuid":             "string (required) - Fan UUID in URL path",
				"age_affirmed":     "boolean (required) - Fan affirms they are an adult",
				"romantic_consent": "boolean (required) - Fan consents to romantic roleplay",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/auth/login",
			"description": "Authenticate a creator with email and password",
			"parameters": map[string]any{
				"email":    "string (required) - Creator email address",
				"password": "string (required) - Creator password",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/auth/refresh",
			"description": "Exchange a refresh token for a new token pair",
			"parameters": map[string]any{
				"refresh_token": "string (required) - Refresh token from login",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/moderation/queue",
			"description": "List moderation queue items (creator token required)",
			"parameters": map[string]any{
				"status":       "string (optional) - Filter: pending|approved|blocked",
				"min_severity": "string (optional) - Severity floor: low|medium|high|critical",
				"limit":        "number (optional) - Page size, default 50, max 100",
				"offset":       "number (optional) - Pagination offset",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/moderation/queue/status-counts",
			"description": "Daily moderation queue counts by status (creator token required)",
			"parameters": map[string]any{
				"day": "string (optional) - UTC day in YYYY-MM-DD format, default today",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/moderation/queue/:uuid/resolve",
			"description": "Resolve a pending moderation item (creator token required)",
			"parameters": map[string]any{
				"uuid":   "string (required) - Moderation item UUID in URL path",
				"status": "string (required) - approved|blocked",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/compliance/score",
			"description": "Current compliance score over the moderation queue (creator token required)",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/compliance/report",
			"description": "Compliance report over the audit trail (creator token required)",
			"parameters": map[string]any{
				"persona_uuid": "string (optional) - Scope the report to one persona",
				"start":        "string (optional) - RFC3339 window start, default 30 days ago",
				"end":          "string (optional) - RFC3339 window end, default now",
				"format":       "string (optional) - json|xlsx, default json",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/health",
			"description": "Health check endpoint",
			"parameters":  map[string]any{},
		},
	}
}
