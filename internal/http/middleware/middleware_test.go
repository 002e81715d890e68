package middleware

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"md2docx/internal/config"
	"md2docx/internal/domain"
	"md2docx/internal/infra/logging"
)

func baseConfig() config.Config {
	var cfg config.Config
	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	return cfg
}

func TestRegister_SetsRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, baseConfig())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestRegister_CORSHeaders(t *testing.T) {
	app := fiber.New()
	Register(app, baseConfig())
	app.Post("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET,POST" {
		t.Fatalf("unexpected allow-methods: %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got == "true" {
		t.Fatal("credentials must not be allowed")
	}
}

func TestRegister_UnlistedOriginNotEchoed(t *testing.T) {
	app := fiber.New()
	Register(app, baseConfig())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "http://evil.example" {
		t.Fatal("unlisted origin must not be allowed")
	}
}

func TestUserRateLimit_MemoryStore(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimiter.UserLimit = 2
	cfg.RateLimiter.Interval = time.Hour

	app := fiber.New()
	Register(app, cfg)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatalf("exceed request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}
}

func TestUserRateLimit_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := baseConfig()
	cfg.RateLimiter.UserLimit = 1
	cfg.RateLimiter.Interval = time.Hour
	cfg.RateLimiter.RedisAddr = mr.Addr()

	app := fiber.New()
	Register(app, cfg)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 but got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}
}

func TestRequestLogger_SkipsHealthAndLogsDuration(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLoggerForTest(zerolog.New(&buf))
	defer logging.SetLoggerForTest(zerolog.New(os.Stderr))

	app := fiber.New()
	app.Use(RequestLogger())
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/other", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for _, path := range []string{"/health", "/other"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("request to %s failed: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}

	out := buf.String()
	if strings.Contains(out, "/health") {
		t.Fatal("health traffic must not be logged at info level")
	}
	if !strings.Contains(out, "request started") || !strings.Contains(out, "request completed") {
		t.Fatalf("expected start and completion records, got: %s", out)
	}
	if !strings.Contains(out, "duration_ms") || !strings.Contains(out, `"status":200`) {
		t.Fatalf("expected duration and status in completion record, got: %s", out)
	}
}

func TestRequestLogger_CompletionStatusOnFailures(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLoggerForTest(zerolog.New(&buf))
	defer logging.SetLoggerForTest(zerolog.New(os.Stderr))

	// Same translation the real server performs for typed errors.
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := domain.Classify(err)
			return c.Status(de.HTTPStatus()).JSON(fiber.Map{"error": de.Message})
		},
	})
	app.Use(RequestLogger())
	app.Post("/convert", func(c *fiber.Ctx) error {
		return domain.Unauthorized("missing authorization header")
	})
	app.Post("/fail", func(c *fiber.Ctx) error {
		return domain.ConversionFailed("conversion failed", "exit status 64")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("unclassified")
	})

	tests := []struct {
		method string
		path   string
		status int
		want   string
	}{
		{"POST", "/convert", fiber.StatusUnauthorized, `"status":401`},
		{"POST", "/fail", fiber.StatusInternalServerError, `"status":500`},
		{"GET", "/boom", fiber.StatusInternalServerError, `"status":500`},
	}
	for _, tc := range tests {
		buf.Reset()
		resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil))
		if err != nil {
			t.Fatalf("%s request failed: %v", tc.path, err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.status, resp.StatusCode)
		}
		out := buf.String()
		if !strings.Contains(out, tc.want) {
			t.Fatalf("%s: completion record missing %s, got: %s", tc.path, tc.want, out)
		}
		if strings.Contains(out, `"status":200`) {
			t.Fatalf("%s: failed request logged as 200: %s", tc.path, out)
		}
	}
}
