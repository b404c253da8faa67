package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    bool
	}{
		{name: "code", query: "?state=s1&code=abc", wantStatus: http.StatusOK, wantCode: "abc"},
		{name: "wrong state", query: "?state=other&code=abc", wantStatus: http.StatusBadRequest, wantErr: true},
		{name: "denied", query: "?state=s1&error=access_denied", wantStatus: http.StatusBadRequest, wantErr: true},
		{name: "no code", query: "?state=s1", wantStatus: http.StatusBadRequest, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			callbackHandler("s1", results).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			res := <-results
			if (res.err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", res.err, tt.wantErr)
			}
			if res.code != tt.wantCode {
				t.Errorf("code = %q, want %q", res.code, tt.wantCode)
			}
		})
	}
}

func TestCallbackHandlerKeepsFirstResult(t *testing.T) {
	results := make(chan callbackResult, 1)
	h := callbackHandler("s1", results)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=first", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=second", nil))

	if res := <-results; res.code != "first" {
		t.Fatalf("code = %q, want first", res.code)
	}
}
