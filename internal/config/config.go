// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND settings.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendTemplate = "template"
	BackendGemini   = "gemini"
)

var (
	sessionBackends  = []string{BackendMemory, BackendRedis}
	draftBackends    = []string{BackendMemory, BackendSQLite}
	composerBackends = []string{BackendTemplate, BackendGemini}
	historyPolicies  = []string{"name", "key"}
)

type Config struct {
	// HTTP Server
	Port           string `env:"PORT" env-default:"8080"`
	LogLevel       string `env:"LOG_LEVEL" env-default:"info"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" env-default:"10485760"`
	RateLimitRPM   int    `env:"RATE_LIMIT_RPM" env-default:"30"`
	SecureCookies  bool   `env:"COOKIE_SECURE" env-default:"false"`

	// Dashboard
	HistoryMatch string `env:"HISTORY_MATCH" env-default:"name"`

	// Sessions
	SessionBackend    string        `env:"SESSION_BACKEND" env-default:"memory"`
	SessionTTL        time.Duration `env:"SESSION_TTL" env-default:"2h"`
	SessionMaxEntries int           `env:"SESSION_MAX_ENTRIES" env-default:"1000"`
	RedisAddr         string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" env-default:"0"`

	// Drafts
	DraftBackend string `env:"DRAFT_BACKEND" env-default:"memory"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" env-default:"./data/kindlecrm.db"`

	// AMQP, optional
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" env-default:"kindlecrm"`
	AMQPQueue    string `env:"AMQP_QUEUE" env-default:"archive_drafts"`

	// Composer
	ComposerBackend string        `env:"COMPOSER_BACKEND" env-default:"template"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" env-default:"gemini-1.5-flash"`
	ComposerTimeout time.Duration `env:"COMPOSER_TIMEOUT" env-default:"30s"`
	Organization    string        `env:"ORGANIZATION_NAME"`

	// Google Sheets archive
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleDraftsSheet        string `env:"GOOGLE_DRAFTS_SHEET" env-default:"Drafts"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Worker
	SyncInterval  time.Duration `env:"SYNC_INTERVAL" env-default:"30s"`
	SyncBatchSize int           `env:"SYNC_BATCH_SIZE" env-default:"10"`
}

// Load reads .env when present, then the environment. Values already set in
// the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

// Usage describes every setting, for -help output.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// HasSheets reports whether a spreadsheet archive is configured.
func (c *Config) HasSheets() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}
	if c.RateLimitRPM < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	errs = oneOf(errs, "history match", c.HistoryMatch, historyPolicies)
	errs = oneOf(errs, "session backend", c.SessionBackend, sessionBackends)
	errs = oneOf(errs, "draft backend", c.DraftBackend, draftBackends)
	errs = oneOf(errs, "composer backend", c.ComposerBackend, composerBackends)

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionBackend == BackendMemory && c.SessionMaxEntries < 1 {
		errs = append(errs, fmt.Sprintf("invalid session max entries %d: must be at least 1", c.SessionMaxEntries))
	}
	if c.SessionBackend == BackendRedis && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, "Redis address cannot be empty when using redis sessions")
	}

	if c.DraftBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite drafts")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.DraftBackend != BackendSQLite {
			errs = append(errs, "AMQP sync requires the sqlite draft backend")
		}
	}

	if c.ComposerBackend == BackendGemini && strings.TrimSpace(c.GeminiAPIKey) == "" {
		errs = append(errs, "GEMINI_API_KEY is required when using the gemini composer")
	}
	if c.ComposerTimeout < time.Second || c.ComposerTimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid composer timeout %v: must be between 1 second and 5 minutes", c.ComposerTimeout))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SyncBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidateWorker adds the checks only the archive worker needs.
func (c *Config) ValidateWorker() error {
	var errs []string
	if err := c.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.DraftBackend != BackendSQLite {
		errs = append(errs, "the worker requires DRAFT_BACKEND=sqlite")
	}
	if c.HasSheets() && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided with GOOGLE_SPREADSHEET_ID")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}
	return nil
}

func oneOf(errs []string, what, value string, valid []string) []string {
	if !slices.Contains(valid, value) {
		errs = append(errs, fmt.Sprintf("invalid %s '%s': must be one of %v", what, value, valid))
	}
	return errs
}
