package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"md2docx/internal/config"
	"md2docx/internal/domain"
	"md2docx/internal/infra/logging"
)

// Register attaches the global middleware stack: CORS, correlation IDs,
// request logging, and the optional per-user rate limiter.
func Register(app *fiber.App, cfg config.Config) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CORS.AllowedOrigins, ","),
		AllowMethods:     "GET,POST",
		AllowHeaders:     "Authorization,Content-Type",
		AllowCredentials: false,
	}))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(RequestLogger())

	if cfg.RateLimiter.UserLimit > 0 {
		app.Use(userRateLimit(cfg))
	}
}

// RequestLogger emits one record at request start and one at completion with
// the final status and duration. Health-check traffic is excluded from INFO
// noise.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = c.GetRespHeader("X-Request-ID")
		}

		logging.Info("request started", "method", c.Method(), "path", c.Path(), "request_id", requestID)

		start := time.Now()
		err := c.Next()
		durationMS := time.Since(start).Milliseconds()

		// The app error handler has not written the response yet, so the
		// final status of a failed request comes from the error itself.
		status := c.Response().StatusCode()
		if err != nil {
			var de *domain.Error
			if errors.As(err, &de) {
				status = de.HTTPStatus()
			} else if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		logging.Info("request completed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", durationMS,
			"request_id", requestID,
		)
		return err
	}
}

// newLimiterStore prefers the Redis-backed store when an address is
// configured, falling back to memory if the store cannot be initialized.
func newLimiterStore(cfg config.Config) fiber.Storage {
	var store fiber.Storage = memoryStorage.New()
	if cfg.RateLimiter.RedisAddr == "" {
		return store
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
			}
		}()
		store = redisStorage.New(redisStorage.Config{
			Addrs: []string{cfg.RateLimiter.RedisAddr},
		})
		logging.Info("Using Redis for rate limiting", "addr", cfg.RateLimiter.RedisAddr)
	}()
	return store
}

// userRateLimit limits requests per client, keyed on a hash of IP and
// User-Agent.
func userRateLimit(cfg config.Config) fiber.Handler {
	clientKey := func(c *fiber.Ctx) string {
		sum := sha256.Sum256([]byte(c.IP() + c.Get("User-Agent")))
		return hex.EncodeToString(sum[:])
	}

	return limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           newLimiterStore(cfg),
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests",
			})
		},
	})
}
