package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "go.uber.org/automaxprocs"

	"md2docx/internal/config"
	"md2docx/internal/convert"
	"md2docx/internal/http/server"
	"md2docx/internal/infra/logging"
	"md2docx/internal/infra/pandoc"
)

func main() {
	cfg := config.Load()
	// Allow common container env var to override pandoc_path.
	if v := os.Getenv("PANDOC_BIN"); v != "" {
		cfg.Convert.PandocPath = v
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	engine := pandoc.New(cfg.Convert.PandocPath)
	converter := convert.NewService(
		engine,
		cfg.Limits.MaxContentBytes(),
		cfg.Convert.Timeout(),
		cfg.Convert.ReferenceDocx,
	)

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	version, err := engine.Version(probeCtx)
	probeCancel()
	if err != nil {
		// The service still starts; /health reports the degraded state.
		logging.Warn("pandoc probe failed at startup", "error", err.Error())
	}
	logging.Info("document export service started",
		"pandoc_version", version,
		"max_content_size_mb", cfg.Limits.MaxContentSizeMB,
		"allowed_origins", cfg.CORS.AllowedOrigins,
	)

	app := server.New(server.Deps{Config: cfg, Converter: converter})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
