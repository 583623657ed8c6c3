// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	RateLimit  int           `yaml:"rate_limit"` // requests per window per client and route, 0 = off
	RateWindow time.Duration `yaml:"rate_window"`
}

type ComputeConfig struct {
	Provider        string            `yaml:"provider"` // kie | openai | gemini | multi | noop
	BaseURL         string            `yaml:"base_url"`
	APIKey          string            `yaml:"api_key"`
	OpenAIKey       string            `yaml:"openai_key"`
	OpenAIBaseURL   string            `yaml:"openai_base_url"`
	GeminiKey       string            `yaml:"gemini_key"`
	GeminiBaseURL   string            `yaml:"gemini_base_url"`
	DefaultModel    string            `yaml:"default_model"`
	ModelProviders  map[string]string `yaml:"model_providers"`  // explicit model -> provider routes for multi
	ConcurrentLimit int               `yaml:"concurrent_limit"` // max concurrent compute calls
	RequestTimeout  time.Duration     `yaml:"request_timeout"`
	CallbackURL     string            `yaml:"callback_url"` // sent as callBackUrl on kie createTask
}

type PollConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
	Deadline    time.Duration `yaml:"deadline"` // wall-clock bound, 0 = attempts only
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type MinioConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Secure        bool   `yaml:"secure"`
	PublicBaseURL string `yaml:"public_base_url"`
	CDNBaseURL    string `yaml:"cdn_base_url"`
}

type StoreConfig struct {
	Backend          string        `yaml:"backend"` // drive | minio | memory | none
	FolderName       string        `yaml:"folder_name"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	MirrorTTL        time.Duration `yaml:"mirror_ttl"`
	MaxCachedObjects int           `yaml:"max_cached_objects"` // 0 = unbounded
	SourceMaxAge     time.Duration `yaml:"source_max_age"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"` // background mirror refresh, 0 = off
	MemoryBaseURL    string        `yaml:"memory_base_url"`
	Drive            DriveConfig   `yaml:"drive"`
	Minio            MinioConfig   `yaml:"minio"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range"`
	CredentialsFile string `yaml:"credentials_file"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type RowLogConfig struct {
	Backend  string         `yaml:"backend"` // sheets | redis | postgres | none
	Sheets   SheetsConfig   `yaml:"sheets"`
	RedisKey string         `yaml:"redis_key"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PersistConfig struct {
	AutoUpload *bool `yaml:"auto_upload"`
	AutoLog    *bool `yaml:"auto_log"`
}

type Config struct {
	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
	Compute ComputeConfig `yaml:"compute"`
	Poll    PollConfig    `yaml:"poll"`
	Retry   RetryConfig   `yaml:"retry"`
	Store   StoreConfig   `yaml:"store"`
	RowLog  RowLogConfig  `yaml:"row_log"`
	Persist PersistConfig `yaml:"persist"`
	Redis   RedisConfig   `yaml:"redis"` // rate limiting, folder lock and the redis row log
	Workers int           `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

// AutoUpload reports whether succeeded jobs are mirrored into the store (default true).
func (c *Config) AutoUpload() bool { return c.Persist.AutoUpload == nil || *c.Persist.AutoUpload }

// AutoLog reports whether succeeded jobs are appended to the row log (default true).
func (c *Config) AutoLog() bool { return c.Persist.AutoLog == nil || *c.Persist.AutoLog }

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.TokenTTL <= 0 {
		c.HTTP.TokenTTL = 12 * time.Hour
	}
	if c.HTTP.RateWindow <= 0 {
		c.HTTP.RateWindow = time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}

	c.Compute.Provider = strings.ToLower(strings.TrimSpace(c.Compute.Provider))
	if c.Compute.Provider == "" {
		c.Compute.Provider = "kie"
	}
	c.Compute.CallbackURL = strings.TrimSpace(c.Compute.CallbackURL)
	if c.Compute.BaseURL == "" {
		c.Compute.BaseURL = "https://api.kie.ai/api/v1/jobs"
	}
	if c.Compute.ConcurrentLimit <= 0 {
		c.Compute.ConcurrentLimit = 4
	}
	if c.Compute.RequestTimeout <= 0 {
		c.Compute.RequestTimeout = 30 * time.Second
	}

	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = 60
	}
	if c.Poll.Delay <= 0 {
		c.Poll.Delay = 2 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = time.Second
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = "none"
	}
	if c.Store.FolderName == "" {
		c.Store.FolderName = "AI_Image_Editor_Pro"
	}
	if c.Store.FetchTimeout <= 0 {
		c.Store.FetchTimeout = 30 * time.Second
	}
	if c.Store.MirrorTTL <= 0 {
		c.Store.MirrorTTL = 30 * time.Second
	}
	if c.Store.SourceMaxAge <= 0 {
		c.Store.SourceMaxAge = 10 * time.Minute
	}
	if c.Store.MemoryBaseURL == "" {
		c.Store.MemoryBaseURL = fmt.Sprintf("http://localhost:%d/api/v1/artifacts", c.HTTP.Port)
	}

	c.RowLog.Backend = strings.ToLower(strings.TrimSpace(c.RowLog.Backend))
	if c.RowLog.Backend == "" {
		c.RowLog.Backend = "none"
	}
	if c.RowLog.Sheets.Range == "" {
		c.RowLog.Sheets.Range = "Image Log!A:H"
	}
	if c.RowLog.RedisKey == "" {
		c.RowLog.RedisKey = "imagegen:log"
	}
}

// Minimal validation: every selected backend must have what it needs to connect.
func (c *Config) validate() error {
	switch c.Compute.Provider {
	case "kie":
		if c.Compute.APIKey == "" {
			return errors.New("compute.api_key is required for provider kie")
		}
	case "openai":
		if c.Compute.OpenAIKey == "" {
			return errors.New("compute.openai_key is required for provider openai")
		}
	case "gemini":
		if c.Compute.GeminiKey == "" {
			return errors.New("compute.gemini_key is required for provider gemini")
		}
	case "multi":
		// kie is the default route, openai and gemini join when their keys are set
		if c.Compute.APIKey == "" {
			return errors.New("compute.api_key is required for provider multi")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown compute.provider %q", c.Compute.Provider)
	}

	switch c.Store.Backend {
	case "drive":
		if !hasGoogleCredentials(c.Store.Drive.CredentialsFile) {
			return errors.New("store.drive.credentials_file or GOOGLE_APPLICATION_CREDENTIALS is required")
		}
	case "minio":
		if c.Store.Minio.Endpoint == "" || c.Store.Minio.Bucket == "" {
			return errors.New("store.minio.endpoint and store.minio.bucket are required")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	switch c.RowLog.Backend {
	case "sheets":
		// an empty spreadsheet_id creates the log spreadsheet on first start
		if !hasGoogleCredentials(c.RowLog.Sheets.CredentialsFile) {
			return errors.New("row_log.sheets.credentials_file or GOOGLE_APPLICATION_CREDENTIALS is required")
		}
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis row log")
		}
	case "postgres":
		if c.RowLog.Postgres.URL == "" {
			return errors.New("row_log.postgres.url is required")
		}
	case "none":
	default:
		return fmt.Errorf("unknown row_log.backend %q", c.RowLog.Backend)
	}

	if c.HTTP.RateLimit > 0 && c.Redis.URL == "" {
		return errors.New("redis.url is required when http.rate_limit is set")
	}
	return nil
}

func hasGoogleCredentials(file string) bool {
	return file != "" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON") != ""
}
