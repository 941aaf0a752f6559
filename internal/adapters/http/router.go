package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/raycross/internal/pkg/metrics"
)

// requestTimeout bounds every REST handler. Imports get longer.
const (
	requestTimeout = 15 * time.Second
	importTimeout  = 60 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP; map clients issue bursts
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, checks are local)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/project", withTimeout(ProjectHandler(deps)))
	v1.Get("/batches", withTimeout(ListBatchesHandler(deps)))

	sessions := v1.Group("/sessions")
	sessions.Post("/", withTimeout(CreateSessionHandler(deps)))
	sessions.Get("/:id", withTimeout(GetSessionHandler(deps)))
	sessions.Delete("/:id", withTimeout(CloseSessionHandler(deps)))
	sessions.Get("/:id/rays", withTimeout(ListRaysHandler(deps)))
	sessions.Post("/:id/rays", withTimeout(AddRayHandler(deps)))
	sessions.Delete("/:id/rays/selected", withTimeout(RemoveSelectedHandler(deps)))
	sessions.Post("/:id/rays/:rayId/toggle", withTimeout(ToggleRayHandler(deps)))
	sessions.Post("/:id/intersections", withTimeout(ComputeFitHandler(deps)))
	sessions.Post("/:id/import", timeout.NewWithContext(ImportHandler(deps), importTimeout))
	sessions.Post("/:id/import/batches/:batch", timeout.NewWithContext(ImportBatchHandler(deps), importTimeout))
	sessions.Get("/:id/overlays", withTimeout(OverlaysHandler(deps)))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("session", c.Query("session"))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}
