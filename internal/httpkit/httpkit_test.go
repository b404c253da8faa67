package httpkit

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestCORS(t *testing.T) {
	handler := CORS(CORSOptions{AllowedOrigins: []string{"https://www.ativachemical.com"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }),
	)

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodPost, "https://www.ativachemical.com", false, http.StatusAccepted, "https://www.ativachemical.com"},
		{"unknown origin", http.MethodPost, "https://evil.example", false, http.StatusAccepted, ""},
		{"preflight", http.MethodOptions, "https://www.ativachemical.com", true, http.StatusNoContent, "https://www.ativachemical.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/products/1/download", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("allow origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestWriteErr(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErr(rec, http.StatusBadRequest, "VALIDATION_ERROR", `quote " and accent é`, map[string]any{"field": "email"})

	body := rec.Body.String()
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(body, `quote \" and accent é`) || !strings.Contains(body, `"field":"email"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestWriteAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAttachment(rec, "application/octet-stream", "history.xlsx", []byte("abc"))

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="history.xlsx"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "abc" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestPgErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	undefined := &pgconn.PgError{Code: "42P01"}

	if !IsUniqueViolation(unique) || IsUniqueViolation(undefined) {
		t.Error("IsUniqueViolation mismatch")
	}
	if !IsUndefinedTable(undefined) || IsUndefinedTable(errors.New("x")) {
		t.Error("IsUndefinedTable mismatch")
	}
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("IsNoRows should unwrap")
	}
}
