package processor

import (
	"fmt"
	"strings"
	"time"
)

// BaseName is the artifact file name shared by the three render stages,
// e.g. product_20261017T100000123Z_42_3f2a9c1e. The job id prefix keeps
// concurrent jobs for the same product apart.
func BaseName(now time.Time, productID int64, jobID string) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer("-", "", ":", "", ".", "").Replace(ts)
	short := SanitizeFilename(jobID)
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("product_%s_%d_%s", ts, productID, short)
}

// SanitizeFilename strips path separators, parent references and spaces.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return "job"
	}
	return s
}
