package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/tuition"
)

// DefaultBasePath is the prefix of the subscription routes.
const DefaultBasePath = "/tuition"

type appConfig struct {
	basePath   string
	logger     *slog.Logger
	metrics    http.Handler
	middleware []fiber.Handler
}

// Option configures the app built by NewApp.
type Option func(*appConfig)

// WithBasePath sets the route prefix (default: /tuition).
func WithBasePath(p string) Option {
	return func(c *appConfig) { c.basePath = p }
}

// WithLogger sets the logger for request and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *appConfig) { c.logger = logger }
}

// WithMetricsHandler sets the handler served on /metrics. Pass nil to
// disable the endpoint. Defaults to promhttp.Handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *appConfig) { c.metrics = h }
}

// WithMiddleware appends middleware installed before the routes.
func WithMiddleware(mw ...fiber.Handler) Option {
	return func(c *appConfig) { c.middleware = append(c.middleware, mw...) }
}

// NewApp builds a Fiber app serving the engine: subscription routes under
// the base path, plus /health and /metrics at the root.
func NewApp(eng *tuition.Engine, opts ...Option) *fiber.App {
	cfg := &appConfig{
		basePath: DefaultBasePath,
		logger:   eng.Logger(),
		metrics:  promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	app := fiber.New(fiber.Config{
		AppName:               "tuition",
		BodyLimit:             1 << 20,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(cfg.logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(requestLogger(cfg.logger))
	for _, mw := range cfg.middleware {
		app.Use(mw)
	}

	h := NewHandler(eng, cfg.logger)
	app.Get("/health", h.health)
	if cfg.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.metrics))
	}
	h.Register(app.Group(cfg.basePath))
	return app
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = statusFor(err)
		}
		logger.Debug("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return err
	}
}
