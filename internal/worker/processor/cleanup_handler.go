package processor

import (
	"context"
	"os"

	"catalog/internal/pkg/logger"
)

// Cleanup removes the artifacts of a finished job.
type Cleanup struct {
	log *logger.Logger
}

func NewCleanup(log *logger.Logger) *Cleanup {
	return &Cleanup{log: log}
}

// Remove deletes every path. Failures are logged per file and never
// returned; files that are already gone are not failures.
func (c *Cleanup) Remove(ctx context.Context, paths []string) (removed int) {
	log := c.log.FromContext(ctx)
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case os.IsNotExist(err):
		default:
			log.Warn("failed to remove artifact", "path", p, "error", err.Error())
		}
	}
	log.Debug("cleanup completed", "removed", removed, "recorded", len(paths))
	return removed
}
