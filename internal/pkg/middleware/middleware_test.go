package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
)

func bufferLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf}), &buf
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := r.Context().Value(logger.RequestIDKey).(string); id == "" {
			t.Error("expected request ID in context")
		}
	}))

	t.Run("generates new request ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if got := rec.Header().Get(RequestIDHeader); len(got) != 32 {
			t.Errorf("expected 32 hex chars, got %q", got)
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "existing-id-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "existing-id-123" {
			t.Errorf("expected preserved request ID, got %s", got)
		}
	})
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		expectedLevel string
	}{
		{"2xx logs info", http.StatusAccepted, "INFO"},
		{"4xx logs warn", http.StatusBadRequest, "WARN"},
		{"5xx logs error", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := bufferLogger()
			handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/products/1/download", nil))

			out := buf.String()
			if !strings.Contains(out, `"level":"`+tt.expectedLevel+`"`) {
				t.Errorf("expected level %s, got: %s", tt.expectedLevel, out)
			}
			if !strings.Contains(out, "request completed") {
				t.Errorf("expected completion line, got: %s", out)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	log, buf := bufferLogger()
	handler := Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("layout exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("expected INTERNAL_ERROR in body, got: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "layout exploded") {
		t.Errorf("expected panic message in log, got: %s", buf.String())
	}
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if deadline.IsZero() {
		t.Fatal("expected a deadline on the request context")
	}
}

func TestRateLimit(t *testing.T) {
	log, _ := bufferLogger()
	handler := RateLimit(log, 0.001, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/products/1/download", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:5000"); code != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i, code)
		}
	}
	if code := send("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the burst is spent, got %d", code)
	}
	if code := send("10.0.0.2:5000"); code != http.StatusAccepted {
		t.Errorf("other clients keep their own bucket, got %d", code)
	}
}

func TestIPLimiterSweepsIdleVisitors(t *testing.T) {
	lim := newIPLimiter(rate.Limit(1), 1, time.Minute)
	start := time.Unix(1_700_000_000, 0)

	lim.allow("a", start)
	lim.allow("b", start.Add(2*time.Minute))

	if _, ok := lim.visitors["a"]; ok {
		t.Error("expected idle visitor to be evicted")
	}
	if _, ok := lim.visitors["b"]; !ok {
		t.Error("expected active visitor to be kept")
	}
}

func TestWrapHandler(t *testing.T) {
	log, _ := bufferLogger()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", errors.ValidationField("email", "Email inválido"), 400, "VALIDATION_ERROR", "Email inválido"},
		{"rejected", errors.Rejected("recaptchaToken", "Falha na validação do reCAPTCHA"), 403, "REJECTED", "Falha na validação do reCAPTCHA"},
		{"not found", errors.NotFound("product", "9"), 404, "NOT_FOUND", "product not found: 9"},
		{"internal hides details", errors.Internal("pool exhausted"), 500, "INTERNAL_ERROR", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error { return tt.err })
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var env struct {
				Error struct {
					Code    string         `json:"code"`
					Message string         `json:"message"`
					Details map[string]any `json:"details"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if env.Error.Code != tt.wantCode || env.Error.Message != tt.wantMsg {
				t.Errorf("unexpected envelope %+v", env.Error)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
	req.RemoteAddr = "203.0.113.9:4711"
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q", got)
	}
	req.RemoteAddr = "203.0.113.9"
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Errorf("ClientIP without port = %q", got)
	}
}

func TestRequireToken(t *testing.T) {
	log, _ := bufferLogger()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name       string
		token      string
		headers    map[string]string
		wantStatus int
	}{
		{"bearer", "t0k", map[string]string{"Authorization": "Bearer t0k"}, http.StatusNoContent},
		{"bearer lowercase scheme", "t0k", map[string]string{"Authorization": "bearer t0k"}, http.StatusNoContent},
		{"api key", "t0k", map[string]string{APIKeyHeader: "t0k"}, http.StatusNoContent},
		{"missing", "t0k", nil, http.StatusUnauthorized},
		{"wrong", "t0k", map[string]string{"Authorization": "Bearer t0K"}, http.StatusUnauthorized},
		{"prefix only", "t0k", map[string]string{APIKeyHeader: "t0"}, http.StatusUnauthorized},
		{"unconfigured", "", map[string]string{"Authorization": "Bearer "}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/downloads/history", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			RequireToken(log, tt.token)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}
