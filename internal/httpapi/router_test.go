package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"

	"catalog/internal/adapters/storage/localfs"
	"catalog/internal/httpapi/handlers"
	"catalog/internal/models"
	"catalog/internal/orchestrator"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
	"catalog/internal/validate"
)

type fakeDownloads struct {
	err     error
	got     orchestrator.DownloadRequest
	filter  models.HistoryFilter
	history []models.DownloadHistoryRecord
}

func (f *fakeDownloads) RequestDownload(_ context.Context, req orchestrator.DownloadRequest) (orchestrator.DownloadResponse, error) {
	f.got = req
	if f.err != nil {
		return orchestrator.DownloadResponse{}, f.err
	}
	return orchestrator.DownloadResponse{Message: orchestrator.AcceptedMessage, JobID: "3f2a9c1e"}, nil
}

func (f *fakeDownloads) ListHistory(_ context.Context, filter models.HistoryFilter) ([]models.DownloadHistoryRecord, error) {
	f.filter = filter
	return f.history, f.err
}

type pingErr struct{ err error }

func (p pingErr) Ping(context.Context) error { return p.err }

func newServer(t *testing.T, d *fakeDownloads, burst int) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := handlers.New(handlers.Deps{
		Downloads: d,
		DB:        pingErr{},
		RDB:       rdb,
		SP:        localfs.New(t.TempDir()),
		Log:       logger.Discard(),
	})
	srv := httptest.NewServer(NewRouter(h, Options{
		AllowedOrigins: []string{"https://www.ativachemical.com"},
		DownloadRPS:    0.001,
		DownloadBurst:  burst,
		AdminToken:     adminToken,
	}))
	t.Cleanup(srv.Close)
	return srv
}

const adminToken = "s3cr3t-admin"

func getAuth(t *testing.T, url string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const formBody = `{"username":"Lucas Santos","company":"Ativa Chemical","phone_number":"11999999999","email":"lucas@example.com","recaptchaToken":"tok"}`

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) (code, message string, details map[string]any) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error.Code, env.Error.Message, env.Error.Details
}

func TestPostDownloadAccepted(t *testing.T) {
	d := &fakeDownloads{}
	srv := newServer(t, d, 10)

	resp := post(t, srv.URL+"/products/42/download?download_type=pdf", formBody)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var body orchestrator.DownloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.JobID != "3f2a9c1e" || body.Message != orchestrator.AcceptedMessage {
		t.Errorf("body = %+v", body)
	}
	if d.got.ProductID != 42 || d.got.DownloadType != "pdf" || d.got.Requester.Email != "lucas@example.com" || d.got.RecaptchaToken != "tok" {
		t.Errorf("request = %+v", d.got)
	}
	if d.got.ClientIP == "" {
		t.Error("expected client ip from the connection")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestPostDownloadErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"bad product id", "/products/abc/download?download_type=pdf", formBody, nil, 400, "VALIDATION_ERROR", ""},
		{"bad json", "/products/42/download?download_type=pdf", `{"username":`, nil, 400, "BAD_REQUEST", ""},
		{"unknown field", "/products/42/download?download_type=pdf", `{"nope":1}`, nil, 400, "BAD_REQUEST", ""},
		{"validation", "/products/42/download?download_type=pdf", formBody, errors.ValidationField("email", validate.MsgEmail), 400, "VALIDATION_ERROR", validate.MsgEmail},
		{"captcha", "/products/42/download?download_type=pdf", formBody, errors.Rejected("recaptchaToken", validate.MsgCaptcha), 403, "", validate.MsgCaptcha},
		{"not found", "/products/7/download?download_type=pdf", formBody, errors.NotFound("product", "7"), 404, "NOT_FOUND", ""},
		{"queue down", "/products/42/download?download_type=pdf", formBody, errors.WrapWithCode(fmt.Errorf("dial tcp"), errors.CodeUnavailable, "queue.Enqueue", "enqueue job"), 503, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeDownloads{err: tt.err}, 10)
			resp := post(t, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			code, msg, _ := decodeError(t, resp)
			if tt.wantCode != "" && code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestPostDownloadRateLimited(t *testing.T) {
	srv := newServer(t, &fakeDownloads{}, 2)
	url := srv.URL + "/products/42/download?download_type=pdf"

	for i := 0; i < 2; i++ {
		if resp := post(t, url, formBody); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
	if resp := post(t, url, formBody); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}

	// Other routes are not throttled.
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	d := &fakeDownloads{history: []models.DownloadHistoryRecord{
		{ID: 1, Name: "Lucas Santos", Email: "lucas@example.com", Company: "Ativa Chemical", ProductName: "Ativa Fos 30", ProductID: 42, Status: models.HistoryDelivered},
	}}
	srv := newServer(t, d, 10)

	resp := getAuth(t, srv.URL+"/downloads/history?search=lucas&limit=5")
	var body struct {
		History []models.DownloadHistoryRecord `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.History) != 1 || d.filter.Search != "lucas" || d.filter.Limit != 5 {
		t.Errorf("history = %+v filter = %+v", body.History, d.filter)
	}

	bad := getAuth(t, srv.URL+"/downloads/history?limit=-1")
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("limit=-1 status = %d, want 400", bad.StatusCode)
	}

	xlsx := getAuth(t, srv.URL+"/downloads/history/export")
	if !strings.Contains(xlsx.Header.Get("Content-Disposition"), "historico-downloads.xlsx") {
		t.Errorf("Content-Disposition = %q", xlsx.Header.Get("Content-Disposition"))
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(xlsx.Body); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	if len(rows) != 2 {
		t.Errorf("workbook rows = %d, want 2", len(rows))
	}
}

func TestHistoryRequiresToken(t *testing.T) {
	srv := newServer(t, &fakeDownloads{}, 10)

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{name: "no token", wantStatus: http.StatusUnauthorized},
		{name: "wrong bearer", header: "Authorization", value: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "basic scheme", header: "Authorization", value: "Basic " + adminToken, wantStatus: http.StatusUnauthorized},
		{name: "bearer", header: "Authorization", value: "Bearer " + adminToken, wantStatus: http.StatusOK},
		{name: "api key", header: "X-API-Key", value: adminToken, wantStatus: http.StatusOK},
	}

	for _, path := range []string{"/downloads/history", "/downloads/history/export"} {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
				if tt.header != "" {
					req.Header.Set(tt.header, tt.value)
				}
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					t.Fatal(err)
				}
				defer resp.Body.Close()
				if resp.StatusCode != tt.wantStatus {
					t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
				}
				if tt.wantStatus == http.StatusUnauthorized {
					if code, _, _ := decodeError(t, resp); code != "UNAUTHORIZED" {
						t.Errorf("code = %s", code)
					}
				}
			})
		}
	}
}

func TestHistoryClosedWithoutConfiguredToken(t *testing.T) {
	h := handlers.New(handlers.Deps{Downloads: &fakeDownloads{}, DB: pingErr{}, SP: localfs.New(t.TempDir()), Log: logger.Discard()})
	req := httptest.NewRequest(http.MethodGet, "/downloads/history", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	NewRouter(h, Options{DownloadBurst: 1}).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimitKeysOnPeerAddress(t *testing.T) {
	srv := newServer(t, &fakeDownloads{}, 1)
	url := srv.URL + "/products/42/download?download_type=pdf"

	for i, want := range []int{http.StatusAccepted, http.StatusTooManyRequests} {
		req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(formBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("request %d status = %d, want %d", i, resp.StatusCode, want)
		}
	}
}

func TestTrustProxyUsesForwardedAddress(t *testing.T) {
	d := &fakeDownloads{}
	h := handlers.New(handlers.Deps{Downloads: d, DB: pingErr{}, SP: localfs.New(t.TempDir()), Log: logger.Discard()})
	router := NewRouter(h, Options{DownloadRPS: 1, DownloadBurst: 1, TrustProxy: true})

	req := httptest.NewRequest(http.MethodPost, "/products/42/download?download_type=pdf", strings.NewReader(formBody))
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if d.got.ClientIP != "203.0.113.7" {
		t.Errorf("client ip = %q, want forwarded address", d.got.ClientIP)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &fakeDownloads{}, 10)

	resp, err := http.Get(srv.URL + "/health?deep=true")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %s, checks = %+v", body.Status, body.Checks)
	}
	for _, name := range []string{"postgres", "redis", "storage"} {
		if body.Checks[name]["status"] != "ok" {
			t.Errorf("%s check = %+v", name, body.Checks[name])
		}
	}
	if body.Checks["storage"]["provider"] != "localfs" {
		t.Errorf("storage provider = %v", body.Checks["storage"]["provider"])
	}
}

func TestHealthDegraded(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := handlers.New(handlers.Deps{
		Downloads: &fakeDownloads{},
		DB:        pingErr{err: fmt.Errorf("connection refused")},
		RDB:       rdb,
		SP:        localfs.New(t.TempDir()),
		Log:       logger.Discard(),
	})
	rec := httptest.NewRecorder()
	NewRouter(h, Options{DownloadBurst: 1}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?deep=true", nil))

	var body map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t, &fakeDownloads{}, 10)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/products/42/download", nil)
	req.Header.Set("Origin", "https://www.ativachemical.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") != "https://www.ativachemical.com" {
		t.Errorf("allow origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
