package innosupps

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Queue names, highest priority first.
const (
	QueueHigh    = "high"
	QueueDefault = "default"
	QueueLow     = "low"
)

// Config holds configuration for every subsystem. It is built once at
// startup and injected; nothing in the core reads the environment itself.
type Config struct {
	// MockMode substitutes deterministic canned responses for the LLM and
	// every third-party provider.
	MockMode bool `yaml:"mock_mode"`

	Worker    WorkerConfig    `yaml:"worker"`
	Queues    []QueueConfig   `yaml:"queues"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Email     EmailConfig     `yaml:"email"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	Auth      AuthConfig      `yaml:"auth"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Sweep     SweepConfig     `yaml:"sweep"`
}

// WorkerConfig controls the worker pool.
type WorkerConfig struct {
	// Concurrency is the maximum number of jobs processed concurrently.
	Concurrency int `yaml:"concurrency"`

	// PollInterval is how often the broker is polled for new jobs.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ShutdownTimeout is the maximum time to wait for in-flight jobs.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// HeartbeatInterval is how often running jobs record a heartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// StaleJobThreshold is how long a running job may go without a
	// heartbeat before the reaper re-queues it.
	StaleJobThreshold time.Duration `yaml:"stale_job_threshold"`

	// DefaultTimeout applies to jobs enqueued without an explicit timeout.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// DefaultMaxRetries applies to jobs enqueued without WithMaxRetries.
	DefaultMaxRetries int `yaml:"default_max_retries"`

	// Backoff names the retry delay strategy: constant, linear,
	// exponential or exponential_jitter.
	Backoff        string        `yaml:"backoff"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`

	// WorkspaceConcurrency caps in-flight jobs per workspace on each
	// queue, so one busy workspace cannot starve the others. Zero is
	// unlimited.
	WorkspaceConcurrency int `yaml:"workspace_concurrency"`
}

// QueueConfig configures one named broker queue.
type QueueConfig struct {
	Name string `yaml:"name"`

	// MaxConcurrency caps in-flight jobs from this queue. Zero is unlimited.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RateLimit is jobs per second started from this queue. Zero is unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the token bucket burst for RateLimit.
	RateBurst int `yaml:"rate_burst"`
}

// RateLimitConfig holds the per-workspace API limiter settings.
type RateLimitConfig struct {
	APILimit  int           `yaml:"api_limit"`
	APIWindow time.Duration `yaml:"api_window"`
}

// EmailConfig holds outbound email pacing settings.
type EmailConfig struct {
	// RateLimit is the workspace-wide number of sends per RateWindow.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`

	// Cooldown is the minimum interval between sends to one recipient.
	Cooldown time.Duration `yaml:"cooldown"`
}

// DatabaseConfig selects the relational store backend.
type DatabaseConfig struct {
	// Driver is one of "postgres", "bun", "sqlite" or "memory".
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

// RedisConfig configures the cache and the broker connection.
type RedisConfig struct {
	// URL is a redis:// URL. Empty selects in-process implementations.
	URL string `yaml:"url"`

	// Prefix namespaces every key written by the broker.
	Prefix string `yaml:"prefix"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	Algorithm   string        `yaml:"algorithm"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// Audit logs every job lifecycle transition as an audit record.
	Audit bool `yaml:"audit"`
}

// SweepConfig schedules the periodic maintenance tasks. Schedules use the
// robfig/cron syntax, including descriptors such as "@every 5m".
type SweepConfig struct {
	OrphanSchedule   string        `yaml:"orphan_schedule"`
	OrphanAfter      time.Duration `yaml:"orphan_after"`
	MemorySchedule   string        `yaml:"memory_schedule"`
	CalendarSchedule string        `yaml:"calendar_schedule"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MockMode: true,
		Worker: WorkerConfig{
			Concurrency:       10,
			PollInterval:      1 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			HeartbeatInterval: 10 * time.Second,
			StaleJobThreshold: 60 * time.Second,
			DefaultTimeout:    300 * time.Second,
			DefaultMaxRetries: 3,
			Backoff:           "exponential_jitter",
			BackoffInitial:    10 * time.Second,
			BackoffMax:        5 * time.Minute,

			WorkspaceConcurrency: 5,
		},
		Queues: []QueueConfig{
			{Name: QueueHigh},
			{Name: QueueDefault},
			{Name: QueueLow},
		},
		RateLimit: RateLimitConfig{
			APILimit:  100,
			APIWindow: time.Minute,
		},
		Email: EmailConfig{
			RateLimit:  50,
			RateWindow: time.Hour,
			Cooldown:   48 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver: "memory",
		},
		Redis: RedisConfig{
			Prefix: "innosupps:",
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1000,
			Timeout:     60 * time.Second,
		},
		Auth: AuthConfig{
			Algorithm:   "HS256",
			TokenExpiry: 30 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Audit:  true,
		},
		Sweep: SweepConfig{
			OrphanSchedule:   "@every 5m",
			OrphanAfter:      10 * time.Minute,
			MemorySchedule:   "@hourly",
			CalendarSchedule: "@every 15m",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("innosupps: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("innosupps: parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides connection strings and secrets from the environment.
// getenv is injected so tests never touch the process environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
		if c.Database.Driver == "memory" {
			c.Database.Driver = driverFromURL(v)
		}
	}
	if v := getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("MOCK_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("innosupps: MOCK_MODE=%q: %w", v, err)
		}
		c.MockMode = b
	}
	return nil
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	if c.Worker.Concurrency <= 0 {
		return Invalid("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if len(c.Queues) == 0 {
		return Invalid("at least one queue must be configured")
	}
	switch c.Worker.Backoff {
	case "", "constant", "linear", "exponential", "exponential_jitter":
	default:
		return Invalid("unknown worker.backoff %q", c.Worker.Backoff)
	}
	if c.RateLimit.APILimit <= 0 || c.RateLimit.APIWindow <= 0 {
		return Invalid("rate_limit.api_limit and api_window must be positive")
	}
	if c.Email.RateLimit <= 0 || c.Email.RateWindow <= 0 {
		return Invalid("email.rate_limit and rate_window must be positive")
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres", "bun", "sqlite":
		if c.Database.URL == "" {
			return Invalid("database.url is required for driver %q", c.Database.Driver)
		}
	default:
		return Invalid("unknown database driver %q", c.Database.Driver)
	}
	if !c.MockMode && c.LLM.APIKey == "" {
		return Invalid("llm.api_key is required when mock_mode is off")
	}
	return nil
}

// QueueNames returns the configured queue names in priority order.
func (c Config) QueueNames() []string {
	names := make([]string, 0, len(c.Queues))
	for _, q := range c.Queues {
		names = append(names, q.Name)
	}
	return names
}

func driverFromURL(u string) string {
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(u, "sqlite:"), strings.HasPrefix(u, "file:"):
		return "sqlite"
	default:
		return "memory"
	}
}
