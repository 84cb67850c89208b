// Package server exposes a backend as the JSON REST API consumed by
// source/httpapi.
package server

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/source"
)

// Backend is what the server serves: the full backend plus notification
// and activity writes.
type Backend interface {
	source.Backend
	source.NotificationWriter
	source.ActivitySink
}

// Config configures a Server.
type Config struct {
	// Token, when set, is required as a bearer token on every /api route.
	Token string

	// Registry, when set, receives HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry

	Logger *zap.Logger
}

// Server wraps the fiber app.
type Server struct {
	app     *fiber.App
	backend Backend
	token   string
	log     *zap.Logger
}

// New builds the app and registers every route.
func New(backend Backend, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		token:   cfg.Token,
		log:     log.Named("server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "taskhub",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	if cfg.Registry != nil {
		prom := fiberprometheus.NewWithRegistry(cfg.Registry, "taskhub", "taskhub", "http", nil)
		s.app.Use(prom.Middleware)
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	s.app.Get("/health", s.health)
	s.routes(s.app.Group("/api", s.requireToken))
	return s
}

// App returns the underlying fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.token == "" {
		return c.Next()
	}
	got, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid bearer token")
	}
	return c.Next()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}
	s.log.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)))
	return nil
}
