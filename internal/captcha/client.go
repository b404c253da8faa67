// Package captcha verifies reCAPTCHA tokens against the siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier checks a CAPTCHA token. clientIP may be empty.
type Verifier interface {
	Verify(ctx context.Context, token, clientIP string) (Result, error)
}

// Result is the siteverify response. Score and Action are only set by
// score based (v3) keys.
type Result struct {
	Success     bool     `json:"success"`
	Score       *float64 `json:"score,omitempty"`
	Action      string   `json:"action,omitempty"`
	Hostname    string   `json:"hostname,omitempty"`
	ChallengeTS string   `json:"challenge_ts,omitempty"`
	ErrorCodes  []string `json:"error-codes,omitempty"`
}

// Passed reports whether r clears minScore and, when action is set, was
// issued for that action.
func (r Result) Passed(minScore float64, action string) bool {
	if !r.Success {
		return false
	}
	if r.Score != nil && *r.Score < minScore {
		return false
	}
	if action != "" && r.Action != "" && r.Action != action {
		return false
	}
	return true
}

// Config configures HTTPClient.
type Config struct {
	VerifyURL string
	Secret    string
	Timeout   time.Duration
}

// HTTPClient posts tokens to the verify endpoint.
type HTTPClient struct {
	verifyURL string
	secret    string
	client    *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPClient{
		verifyURL: cfg.VerifyURL,
		secret:    cfg.Secret,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) Verify(ctx context.Context, token, clientIP string) (Result, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if clientIP != "" {
		form.Set("remoteip", clientIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Result{}, fmt.Errorf("captcha verify http %d", res.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode captcha response: %w", err)
	}
	return out, nil
}
