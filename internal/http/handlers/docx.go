package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"md2docx/internal/auth"
	"md2docx/internal/config"
	"md2docx/internal/convert"
	"md2docx/internal/domain"
	"md2docx/internal/infra/logging"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DocxService bundles configuration and the conversion pipeline for the HTTP
// handlers.
type DocxService struct {
	Config    config.Config
	Converter *convert.Service

	validator *domain.Validator
}

// NewDocxService creates a DocxService with a request validator.
func NewDocxService(cfg config.Config, converter *convert.Service) *DocxService {
	return &DocxService{
		Config:    cfg,
		Converter: converter,
		validator: domain.NewValidator(),
	}
}

// HandleConvert authenticates, validates, and runs one Markdown to DOCX
// conversion. Failures are returned as typed errors; the app error handler
// turns them into JSON.
func (svc *DocxService) HandleConvert(c *fiber.Ctx) error {
	if err := auth.Check(c.Get(fiber.HeaderAuthorization), svc.Config.Auth.APIKey); err != nil {
		return err
	}

	var req domain.ConvertRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.BadInput("invalid JSON body")
	}
	if err := svc.validator.ValidateConvert(&req, svc.Config.Limits.MaxContentBytes()); err != nil {
		return err
	}

	requestID := c.GetRespHeader("X-Request-ID")
	logging.Info("starting conversion",
		"request_id", requestID,
		"content_size_bytes", len(req.Content),
		"filename", req.Filename,
	)

	start := time.Now()
	out, err := svc.Converter.Convert(c.Context(), req.Content, req.Filename)
	if err != nil {
		return err
	}

	logging.Info("conversion successful",
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
		"content_size_bytes", len(req.Content),
		"output_size_bytes", len(out),
	)

	c.Set(fiber.HeaderContentType, docxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+req.Filename+`"`)
	return c.Send(out)
}

// healthProbeTimeout bounds the version probe so a hung converter still
// yields a degraded-state answer.
const healthProbeTimeout = 5 * time.Second

// HandleHealth probes converter availability. A failed probe is reported as a
// degraded 503 response, never a panic.
func (svc *DocxService) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthProbeTimeout)
	defer cancel()

	version, err := svc.Converter.HealthProbe(ctx)
	if err != nil {
		logging.Error("health check failed", "error", err.Error())
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
