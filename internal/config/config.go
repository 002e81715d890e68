package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all process-wide settings. It is resolved once at startup and
// treated as immutable afterwards; handlers share it without locking.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Limits      LimitsConfig      `yaml:"limits"`
	CORS        CORSConfig        `yaml:"cors"`
	Convert     ConvertConfig     `yaml:"convert"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Logger      LoggerConfig      `yaml:"logger"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	Prefork bool   `yaml:"prefork"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type LimitsConfig struct {
	MaxContentSizeMB int `yaml:"max_content_size_mb"`
}

// MaxContentBytes returns the content size limit in bytes.
func (l LimitsConfig) MaxContentBytes() int {
	return l.MaxContentSizeMB * 1024 * 1024
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ConvertConfig struct {
	PandocPath    string `yaml:"pandoc_path"`
	ReferenceDocx string `yaml:"reference_docx"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// Timeout returns the conversion deadline as a duration.
func (c ConvertConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

type RateLimiterConfig struct {
	UserLimit int           `yaml:"user_limit"`
	Interval  time.Duration `yaml:"interval"`
	RedisAddr string        `yaml:"redis_addr"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Level      string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Host: "", Port: ":8000"},
		Auth:   AuthConfig{APIKey: "dev-secret-key-12345"},
		Limits: LimitsConfig{MaxContentSizeMB: 5},
		CORS: CORSConfig{AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:3002",
			"http://localhost:3003",
		}},
		Convert: ConvertConfig{
			PandocPath:    "pandoc",
			ReferenceDocx: "templates/reference.docx",
			TimeoutSecs:   30,
		},
		RateLimiter: RateLimiterConfig{Interval: time.Minute},
		Logger:      LoggerConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28, Level: "info"},
	}
}

// Load resolves the configuration from defaults, an optional YAML file named by
// CONFIG_PATH, and environment variable overrides, in that order.
func Load() Config {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return LoadFrom(p)
	}
	cfg := defaults()
	applyEnv(&cfg)
	validate(cfg)
	return cfg
}

// LoadFrom reads the YAML file at path on top of the defaults, then applies
// environment overrides. It panics when the file is unreadable or a value is
// out of range; a service with a broken config must not start.
func LoadFrom(path string) Config {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}

	applyEnv(&cfg)
	validate(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EXPORT_SERVICE_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MAX_CONTENT_SIZE_MB"); v != "" {
		cfg.Limits.MaxContentSizeMB = mustAtoi("MAX_CONTENT_SIZE_MB", v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORS.AllowedOrigins = origins
	}
	if v := os.Getenv("CONVERSION_TIMEOUT_SECONDS"); v != "" {
		cfg.Convert.TimeoutSecs = mustAtoi("CONVERSION_TIMEOUT_SECONDS", v)
	}
	if v := os.Getenv("REFERENCE_DOCX_PATH"); v != "" {
		cfg.Convert.ReferenceDocx = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Port = v
	}
}

func mustAtoi(name, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("config: %s must be an integer, got %q", name, v))
	}
	return n
}

func validate(cfg Config) {
	if cfg.Auth.APIKey == "" {
		panic("config: api key must not be empty")
	}
	if cfg.Limits.MaxContentSizeMB <= 0 {
		panic("config: max_content_size_mb must be positive")
	}
	if cfg.Convert.TimeoutSecs <= 0 {
		panic("config: convert timeout_secs must be positive")
	}
	if cfg.Convert.PandocPath == "" {
		panic("config: pandoc_path must not be empty")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		panic("config: rate_limiter user_limit must not be negative")
	}
	if cfg.RateLimiter.UserLimit > 0 && cfg.RateLimiter.Interval <= 0 {
		panic("config: rate_limiter interval must be positive")
	}
}
