// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/fairyhunter13/image-checker/internal/storage"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Host   string `env:"HOST" envDefault:"127.0.0.1"`
	Port   int    `env:"PORT" envDefault:"3000"`

	// ImageBaseDir is the directory relative image references resolve
	// against. Accepts a plain path or a file:// URI with an absolute path.
	ImageBaseDir string `env:"IMAGE_BASE_DIR,required"`

	LLMAPIURL    string `env:"LLM_API_URL,required"`
	LLMModelName string `env:"LLM_MODEL_NAME" envDefault:"llava:7b"`

	RequestTimeoutSeconds     int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	ProcessingTimeoutMinutes  int `env:"PROCESSING_TIMEOUT_MINUTES" envDefault:"5"`
	QueueSize                 int `env:"QUEUE_SIZE" envDefault:"100"`
	ThrottleRequestsPerMinute int `env:"THROTTLE_REQUESTS_PER_MINUTE" envDefault:"60"`

	CleanupInterval    time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
	ShutdownGrace      time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	CORSAllowOrigins   string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin    int           `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	HTTPReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName    string        `env:"OTEL_SERVICE_NAME" envDefault:"image-checker"`
}

// Load parses environment variables into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the configuration invariants: the image base directory
// must exist, the LLM URL must be http(s), the queue size must be within
// [1, 10000], and the throttle rate must be at least one per minute.
func (c Config) Validate() error {
	base, err := c.BaseDir()
	if err != nil {
		return fmt.Errorf("op=config.Validate: %w", err)
	}
	if !base.Exists() {
		return fmt.Errorf("op=config.Validate: image base directory does not exist: %s", c.ImageBaseDir)
	}
	if !strings.HasPrefix(c.LLMAPIURL, "http://") && !strings.HasPrefix(c.LLMAPIURL, "https://") {
		return fmt.Errorf("op=config.Validate: LLM API URL must start with http:// or https://: %s", c.LLMAPIURL)
	}
	if c.QueueSize < 1 || c.QueueSize > 10000 {
		return fmt.Errorf("op=config.Validate: queue size must be between 1 and 10000, got: %d", c.QueueSize)
	}
	if c.ThrottleRequestsPerMinute < 1 {
		return fmt.Errorf("op=config.Validate: throttle requests per minute must be greater than 0")
	}
	return nil
}

// BaseDir parses ImageBaseDir into a storage.BaseDir.
func (c Config) BaseDir() (storage.BaseDir, error) {
	return storage.ParseBaseDir(c.ImageBaseDir)
}

// RequestTimeout bounds each individual VLM HTTP attempt.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ProcessingTimeout bounds one whole job; it doubles as the record
// retention window for the reaper.
func (c Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutMinutes) * time.Minute
}

// ThrottleInterval is the minimum spacing between jobs: 60s divided by the
// per-minute throttle rate.
func (c Config) ThrottleInterval() time.Duration {
	return time.Minute / time.Duration(c.ThrottleRequestsPerMinute)
}

// Addr returns the host:port the HTTP server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }
