package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"JOB_QUEUE_NAME", "JOB_MAX_RETRIES", "JOB_BACKOFF", "JOB_TIMEOUT", "RENDER_SCALE", "WIDE_TABLE_COLUMNS", "RECAPTCHA_MIN_SCORE"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Queue.Name != "generate-pdf-email" {
		t.Errorf("queue name = %q", cfg.Queue.Name)
	}
	if cfg.Queue.MaxRetries != 1 || cfg.Queue.Backoff != 5*time.Second {
		t.Errorf("retry policy = %d/%s", cfg.Queue.MaxRetries, cfg.Queue.Backoff)
	}
	if cfg.Render.Scale != 3.0 || cfg.Render.WideTableColumns != 11 {
		t.Errorf("render defaults = %+v", cfg.Render)
	}
	if cfg.Captcha.MinScore != 0.5 {
		t.Errorf("captcha min score = %v", cfg.Captcha.MinScore)
	}
	if cfg.Queue.JobTimeout != 2*time.Minute {
		t.Errorf("job timeout = %s", cfg.Queue.JobTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JOB_MAX_RETRIES", "3")
	t.Setenv("JOB_BACKOFF", "250ms")
	t.Setenv("RENDER_SCALE", "2")
	t.Setenv("EMAIL_ALERT_TO", "ops@ativachemical.com, , sales@ativachemical.com")
	t.Setenv("EMAIL", "bot@ativachemical.com")
	t.Setenv("WORKER_NAME", "pdf-worker-a")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.MaxRetries != 3 || cfg.Queue.Backoff != 250*time.Millisecond {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.Render.Scale != 2 {
		t.Errorf("scale = %v", cfg.Render.Scale)
	}
	want := []string{"ops@ativachemical.com", "sales@ativachemical.com"}
	if !reflect.DeepEqual(cfg.Mail.AlertTo, want) {
		t.Errorf("alert to = %v", cfg.Mail.AlertTo)
	}
	if cfg.Queue.WorkerName != "pdf-worker-a" {
		t.Errorf("worker name = %q", cfg.Queue.WorkerName)
	}
	if cfg.Mail.From != "bot@ativachemical.com" {
		t.Errorf("from should default to EMAIL, got %q", cfg.Mail.From)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "WORKER_CONCURRENCY") {
		t.Fatalf("expected parse error naming the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(*Config) error
		wantErr string
	}{
		{
			name:    "api needs database, captcha secret and admin token",
			check:   (*Config).ValidateAPI,
			wantErr: "DATABASE_URL, RECAPTCHA_SECRET_KEY, ADMIN_API_TOKEN",
		},
		{
			name:    "api rejects unknown storage",
			env:     map[string]string{"DATABASE_URL": "postgres://x", "RECAPTCHA_SECRET_KEY": "s", "STORAGE_PROVIDER": "s3"},
			check:   (*Config).ValidateAPI,
			wantErr: `unknown STORAGE_PROVIDER "s3"`,
		},
		{
			name:    "gcs needs bucket",
			env:     map[string]string{"DATABASE_URL": "postgres://x", "STORAGE_PROVIDER": "gcs"},
			check:   (*Config).ValidateSeed,
			wantErr: "GCS_BUCKET",
		},
		{
			name:    "worker needs mail settings",
			env:     map[string]string{"DATABASE_URL": "postgres://x"},
			check:   (*Config).ValidateWorker,
			wantErr: "EMAIL, EMAIL_PASSWORD, EMAIL_ALERT_TO",
		},
		{
			name: "api ok",
			env: map[string]string{
				"DATABASE_URL":         "postgres://x",
				"RECAPTCHA_SECRET_KEY": "s",
				"ADMIN_API_TOKEN":      "t0ken",
			},
			check: (*Config).ValidateAPI,
		},
		{
			name: "worker ok",
			env: map[string]string{
				"DATABASE_URL":   "postgres://x",
				"EMAIL":          "bot@ativachemical.com",
				"EMAIL_PASSWORD": "secret",
				"EMAIL_ALERT_TO": "ops@ativachemical.com",
			},
			check: (*Config).ValidateWorker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DATABASE_URL", "RECAPTCHA_SECRET_KEY", "STORAGE_PROVIDER", "EMAIL", "EMAIL_PASSWORD", "EMAIL_ALERT_TO", "ADMIN_API_TOKEN"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = tt.check(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{TimeZone: "America/Sao_Paulo"}
	if got := cfg.Location().String(); got != "America/Sao_Paulo" {
		t.Errorf("Location() = %s", got)
	}
	cfg.TimeZone = "Mars/Olympus"
	if cfg.Location() != time.UTC {
		t.Error("unknown zone should fall back to UTC")
	}
}
