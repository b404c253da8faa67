// Package config loads the settings shared by the api, worker and seed binaries
// from environment variables. Binaries call godotenv.Load before Load so a
// local .env file is honoured.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Storage   StorageConfig
	Render    RenderConfig
	Mail      MailConfig
	Captcha   CaptchaConfig
	RateLimit RateLimitConfig

	// TimeZone is used for printed request times and exported history.
	TimeZone string
}

type LogConfig struct {
	Level     string
	Format    string
	AddSource bool
}

type HTTPConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string
	// AdminToken guards the download history routes.
	AdminToken string
	// TrustProxy makes X-Forwarded-For and X-Real-IP the client address.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig controls the render job queue.
type QueueConfig struct {
	Name string
	// MaxRetries is the number of extra attempts after the first failure.
	MaxRetries      int
	Backoff         time.Duration
	Concurrency     int
	PopTimeout      time.Duration
	PromoteInterval time.Duration
	DeadLetterMax   int64
	// WorkerName owns the active lists. It must survive restarts so
	// abandoned jobs are recovered; defaults to the hostname.
	WorkerName string
	JobTimeout time.Duration
}

type StorageConfig struct {
	Provider  string
	LocalRoot string

	GCSBucket string

	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string
}

// RenderConfig locates assets and scratch space for the worker.
type RenderConfig struct {
	ArtifactRoot string
	AssetDir     string
	// FontDir holds Roboto TTFs. Empty means the core Helvetica font.
	FontDir          string
	Scale            float64
	Pdftoppm         string
	WideTableColumns int
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AlertTo  []string
	PoolSize int
	Timeout  time.Duration
	// PlainText skips STARTTLS. Local relays only.
	PlainText bool
}

type CaptchaConfig struct {
	VerifyURL string
	Secret    string
	MinScore  float64
	Action    string
	Timeout   time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var p envParser

	cfg := &Config{
		Log: LogConfig{
			Level:     Env("LOG_LEVEL", "info"),
			Format:    Env("LOG_FORMAT", "json"),
			AddSource: BoolEnv("LOG_SOURCE", false),
		},
		HTTP: HTTPConfig{
			Port:           Env("HTTP_PORT", "8080"),
			ReadTimeout:    p.duration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   p.duration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			RequestTimeout: p.duration("HTTP_REQUEST_TIMEOUT", 20*time.Second),
			AllowedOrigins: CSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AdminToken:     Env("ADMIN_API_TOKEN", ""),
			TrustProxy:     BoolEnv("HTTP_TRUST_PROXY", false),
		},
		Database: DatabaseConfig{
			URL:      Env("DATABASE_URL", ""),
			MaxConns: p.int("DATABASE_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     Env("REDIS_ADDR", "localhost:6379"),
			Password: Env("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Name:            Env("JOB_QUEUE_NAME", "generate-pdf-email"),
			MaxRetries:      p.int("JOB_MAX_RETRIES", 1),
			Backoff:         p.duration("JOB_BACKOFF", 5*time.Second),
			Concurrency:     p.int("WORKER_CONCURRENCY", 1),
			PopTimeout:      p.duration("JOB_POP_TIMEOUT", 5*time.Second),
			PromoteInterval: p.duration("JOB_PROMOTE_INTERVAL", time.Second),
			DeadLetterMax:   int64(p.int("JOB_DEAD_LETTER_MAX", 1000)),
			WorkerName:      Env("WORKER_NAME", ""),
			JobTimeout:      p.duration("JOB_TIMEOUT", 2*time.Minute),
		},
		Storage: StorageConfig{
			Provider:           Env("STORAGE_PROVIDER", "localfs"),
			LocalRoot:          Env("STORAGE_LOCAL_ROOT", "./data"),
			GCSBucket:          Env("GCS_BUCKET", ""),
			GDriveClientID:     Env("GDRIVE_CLIENT_ID", ""),
			GDriveClientSecret: Env("GDRIVE_CLIENT_SECRET", ""),
			GDriveRefreshToken: Env("GDRIVE_REFRESH_TOKEN", ""),
			GDriveFolderID:     Env("GDRIVE_FOLDER_ID", ""),
		},
		Render: RenderConfig{
			ArtifactRoot:     Env("ARTIFACT_ROOT", "./temp"),
			AssetDir:         Env("ASSET_DIR", "./assets/img"),
			FontDir:          Env("FONT_DIR", ""),
			Scale:            p.float("RENDER_SCALE", 3.0),
			Pdftoppm:         Env("PDFTOPPM_BIN", "pdftoppm"),
			WideTableColumns: p.int("WIDE_TABLE_COLUMNS", 11),
		},
		Mail: MailConfig{
			Host:      Env("SMTP_HOST", "smtp.gmail.com"),
			Port:      p.int("SMTP_PORT", 587),
			Username:  Env("EMAIL", ""),
			Password:  Env("EMAIL_PASSWORD", ""),
			From:      Env("EMAIL_FROM", Env("EMAIL", "")),
			AlertTo:   CSVEnv("EMAIL_ALERT_TO", nil),
			PoolSize:  p.int("SMTP_POOL_SIZE", 5),
			Timeout:   p.duration("SMTP_TIMEOUT", 30*time.Second),
			PlainText: BoolEnv("SMTP_PLAINTEXT", false),
		},
		Captcha: CaptchaConfig{
			VerifyURL: Env("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			Secret:    Env("RECAPTCHA_SECRET_KEY", ""),
			MinScore:  p.float("RECAPTCHA_MIN_SCORE", 0.5),
			Action:    Env("RECAPTCHA_ACTION", ""),
			Timeout:   p.duration("RECAPTCHA_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RPS:   p.float("DOWNLOAD_RATE_RPS", 0.2),
			Burst: p.int("DOWNLOAD_RATE_BURST", 3),
		},
		TimeZone: Env("DISPLAY_TIMEZONE", "America/Sao_Paulo"),
	}

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateAPI checks the settings the HTTP API cannot start without.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Captcha.Secret == "" {
		missing = append(missing, "RECAPTCHA_SECRET_KEY")
	}
	if c.HTTP.AdminToken == "" {
		missing = append(missing, "ADMIN_API_TOKEN")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	return missingErr(missing)
}

// ValidateWorker checks the settings the render worker cannot start without.
func (c *Config) ValidateWorker() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Mail.Username == "" {
		missing = append(missing, "EMAIL")
	}
	if c.Mail.Password == "" {
		missing = append(missing, "EMAIL_PASSWORD")
	}
	if len(c.Mail.AlertTo) == 0 {
		missing = append(missing, "EMAIL_ALERT_TO")
	}
	if err := missingErr(missing); err != nil {
		return err
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("config: WORKER_CONCURRENCY must be >= 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("config: JOB_MAX_RETRIES must be >= 0, got %d", c.Queue.MaxRetries)
	}
	if c.Render.Scale <= 0 {
		return fmt.Errorf("config: RENDER_SCALE must be positive, got %v", c.Render.Scale)
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Provider {
	case "localfs":
		if s.LocalRoot == "" {
			return errors.New("config: STORAGE_LOCAL_ROOT is required for localfs")
		}
	case "gcs":
		if s.GCSBucket == "" {
			return errors.New("config: GCS_BUCKET is required for gcs")
		}
	case "gdrive":
		if s.GDriveClientID == "" || s.GDriveClientSecret == "" || s.GDriveRefreshToken == "" {
			return errors.New("config: GDRIVE_CLIENT_ID, GDRIVE_CLIENT_SECRET and GDRIVE_REFRESH_TOKEN are required for gdrive")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_PROVIDER %q", s.Provider)
	}
	return nil
}

func missingErr(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return fmt.Errorf("config: missing required environment variables: %s", strings.Join(keys, ", "))
}

// ValidateSeed checks the settings the product seeder needs.
func (c *Config) ValidateSeed() error {
	if c.Database.URL == "" {
		return missingErr([]string{"DATABASE_URL"})
	}
	return c.Storage.validate()
}
