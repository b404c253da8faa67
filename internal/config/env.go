package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env returns the trimmed value of k, or def when unset.
func Env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// BoolEnv reads k with strconv.ParseBool. Empty or invalid values yield def.
func BoolEnv(k string, def bool) bool {
	b, err := strconv.ParseBool(Env(k, ""))
	if err != nil {
		return def
	}
	return b
}

// CSVEnv splits a comma separated variable, dropping blanks.
func CSVEnv(k string, def []string) []string {
	raw := Env(k, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// envParser accumulates the first parse failure so Load can report it once.
type envParser struct {
	err error
}

func (p *envParser) int(k string, def int) int {
	raw := Env(k, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(k, raw, err)
		return def
	}
	return v
}

func (p *envParser) float(k string, def float64) float64 {
	raw := Env(k, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(k, raw, err)
		return def
	}
	return v
}

func (p *envParser) duration(k string, def time.Duration) time.Duration {
	raw := Env(k, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(k, raw, err)
		return def
	}
	return v
}

func (p *envParser) fail(k, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s=%q: %w", k, raw, err)
	}
}
