// Package api exposes the running brightness service over a local HTTP API.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hoppxi/glint/internal/manager"
	"github.com/rs/zerolog"
)

// Service is the part of the daemon the API drives.
type Service interface {
	List() []manager.Status
	Status(query string) (manager.Status, error)
	Set(query string, value float64, smooth bool) (float64, error)
	Step(query string, up, fine bool) (float64, error)
	Reset(query string) error
}

// Provider returns the live service, or false while the daemon has not
// started it yet.
type Provider func() (Service, bool)

type Server struct {
	app     *fiber.App
	service Provider
	log     zerolog.Logger
	started time.Time
}

func NewServer(service Provider, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		AppName:               "glint",
	})

	s := &Server{
		app:     app,
		service: service,
		log:     log.With().Str("component", "api").Logger(),
		started: time.Now(),
	}

	app.Use(recover.New())
	app.Use(s.requestLog)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	api.Get("/displays", s.listDisplays)
	api.Get("/displays/:id/brightness", s.getBrightness)
	api.Post("/displays/:id/brightness", s.setBrightness)
	api.Post("/displays/:id/step", s.step)
	api.Post("/displays/:id/reset", s.reset)

	api.Get("/health", s.healthCheck)
}

func (s *Server) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("took", time.Since(start)).
		Msg("request")
	return err
}

func (s *Server) Start(address string) error {
	s.log.Info().Str("listen", address).Msg("http api listening")
	return s.app.Listen(address)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	_, running := s.service()
	return c.JSON(fiber.Map{
		"status":    "ok",
		"running":   running,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().Unix(),
	})
}
