// Package convert orchestrates a single Markdown to DOCX conversion: input
// sanitization, scoped temp-file lifecycle, the timeout-bounded engine call,
// and read-back of the produced bytes.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"md2docx/internal/domain"
	"md2docx/internal/infra/logging"
)

// Engine is the external converter. Implemented by pandoc.Engine; tests
// substitute fakes.
type Engine interface {
	Render(ctx context.Context, markdown, outputPath, referencePath string) error
	Version(ctx context.Context) (string, error)
}

// Service performs full, independent conversions. No result is cached or
// retained between calls.
type Service struct {
	engine        Engine
	maxBytes      int
	timeout       time.Duration
	referencePath string
}

func NewService(engine Engine, maxBytes int, timeout time.Duration, referencePath string) *Service {
	return &Service{
		engine:        engine,
		maxBytes:      maxBytes,
		timeout:       timeout,
		referencePath: referencePath,
	}
}

// Convert renders content into DOCX bytes. It re-validates input so it stays
// safe to call outside the HTTP layer. The temporary output file is removed on
// every exit path, including timeout and cancellation.
func (s *Service) Convert(ctx context.Context, content, filename string) ([]byte, error) {
	if err := domain.CheckContent(content, s.maxBytes); err != nil {
		return nil, err
	}

	sanitized := sanitizeMarkdown(content)

	tmp, err := os.CreateTemp("", "md2docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("creating temp output: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		removeTemp(tmpPath)
		return nil, fmt.Errorf("closing temp output: %w", err)
	}
	defer removeTemp(tmpPath)

	// The template is optional; its absence is not an error. Existence is
	// checked per call, not at startup.
	referencePath := ""
	if s.referencePath != "" {
		if _, err := os.Stat(s.referencePath); err == nil {
			referencePath = s.referencePath
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.engine.Render(ctx, sanitized, tmpPath, referencePath); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ConversionFailed(
				fmt.Sprintf("conversion timed out after %s", s.timeout), err.Error())
		}
		return nil, domain.ConversionFailed("conversion failed", err.Error())
	}

	out, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, domain.ConversionFailed("conversion produced unreadable output", err.Error())
	}
	if len(out) == 0 {
		return nil, domain.ConversionFailed("conversion produced empty output", "")
	}

	logging.Debug("conversion complete", "filename", filename, "output_size_bytes", len(out))
	return out, nil
}

// HealthProbe reports the engine version, translating probe failures into an
// error instead of letting them propagate.
func (s *Service) HealthProbe(ctx context.Context) (string, error) {
	return s.engine.Version(ctx)
}

// sanitizeMarkdown HTML-escapes literal script tag tokens. The converter may
// pass embedded HTML through to the document, so just these tokens are
// neutralized; all other Markdown is left untouched.
func sanitizeMarkdown(content string) string {
	content = strings.ReplaceAll(content, "<script", "&lt;script")
	content = strings.ReplaceAll(content, "</script>", "&lt;/script&gt;")
	return content
}

// removeTemp deletes the scoped output file. Cleanup is best effort: a failed
// delete is logged, never raised.
func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove temp output", "path", path, "error", err.Error())
	}
}
