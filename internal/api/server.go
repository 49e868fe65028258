// Package api serves the extraction pipeline and the review workflow over
// HTTP with fiber.
package api

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/extract"
	"github.com/hurttlocker/syllabus/internal/store"
)

// MaxBodyBytes bounds uploaded syllabus text.
const MaxBodyBytes = 10 * 1024 * 1024

// Config wires the server to its collaborators.
type Config struct {
	Store        store.Store
	Orchestrator *extract.Orchestrator
	// Dates normalizes dates typed during review. Nil uses the default anchor.
	Dates        *dates.Normalizer
	CalendarName string
	Logger       *slog.Logger
	Version      string
}

type server struct {
	store        store.Store
	orchestrator *extract.Orchestrator
	dates        *dates.Normalizer
	calendarName string
	logger       *slog.Logger
	version      string
}

// New builds the fiber app.
func New(cfg Config) *fiber.App {
	s := &server{
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		dates:        cfg.Dates,
		calendarName: cfg.CalendarName,
		logger:       cfg.Logger,
		version:      cfg.Version,
	}
	if s.orchestrator == nil {
		s.orchestrator = extract.NewOrchestrator()
	}
	if s.dates == nil {
		s.dates = dates.New(dates.DefaultAnchor())
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		AppName:               "syllabus",
		BodyLimit:             MaxBodyBytes,
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(s.requestLogger)

	app.Get("/healthz", s.health)

	api := app.Group("/api")
	api.Post("/extract", s.extract)
	api.Get("/syllabi", s.listSyllabi)
	api.Get("/syllabi/:id", s.getSyllabus)
	api.Delete("/syllabi/:id", s.deleteSyllabus)
	api.Get("/syllabi/:id/calendar.ics", s.calendar)
	api.Patch("/events/:id", s.patchEvent)

	return app
}

// errorHandler renders every error as the JSON envelope used by handlers.
func (s *server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	} else if errors.Is(err, store.ErrNotFound) {
		code = fiber.StatusNotFound
	} else if errors.Is(err, store.ErrInvalid) {
		code = fiber.StatusBadRequest
	}
	if code >= 500 {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

func (s *server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if strings.HasPrefix(c.Path(), "/healthz") {
		return err
	}
	s.logger.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

func (s *server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": s.version,
		"storage": s.store != nil,
	})
}

func (s *server) requireStore() error {
	if s.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage is not configured")
	}
	return nil
}
