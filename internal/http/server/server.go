// Package server assembles the Fiber application: error translation,
// middleware stack, and routes.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"md2docx/internal/config"
	"md2docx/internal/convert"
	"md2docx/internal/domain"
	"md2docx/internal/http/handlers"
	"md2docx/internal/http/middleware"
	"md2docx/internal/infra/logging"
)

// Deps are the collaborators the server needs.
type Deps struct {
	Config    config.Config
	Converter *convert.Service
}

// New creates and configures the Fiber app.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               deps.Config.Server.Prefork,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	middleware.Register(app, deps.Config)

	svc := handlers.NewDocxService(deps.Config, deps.Converter)

	app.Get("/health", svc.HandleHealth)

	v1 := app.Group("/api/v1")
	v1.Post("/convert/docx", svc.HandleConvert)
	v1.Get("/monitor", monitor.New())

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// errorHandler is the single translation step from typed errors to JSON
// responses. Unclassified errors are logged in full and reduced to a generic
// message.
func errorHandler(c *fiber.Ctx, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		logResult(c, de)
		resp := fiber.Map{"error": de.Message}
		if de.Details != "" {
			resp["details"] = de.Details
		}
		return c.Status(de.HTTPStatus()).JSON(resp)
	}

	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
	}

	internal := domain.Classify(err)
	logging.Error("unexpected error", "path", c.Path(), "error", err.Error())
	return c.Status(internal.HTTPStatus()).JSON(fiber.Map{"error": internal.Message})
}

func logResult(c *fiber.Ctx, de *domain.Error) {
	switch de.Kind {
	case domain.KindUnauthorized, domain.KindBadInput:
		logging.Warn("request rejected", "path", c.Path(), "kind", string(de.Kind), "message", de.Message)
	default:
		logging.Error("request failed", "path", c.Path(), "kind", string(de.Kind), "error", de.Error())
	}
}
