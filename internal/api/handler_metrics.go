package api

import (
	"net/http"

	"github.com/harpy-platform/harpy-core/internal/metrics"
)

// HandleMetrics returns the Prometheus text-exposition handler for GET
// /metrics.
func HandleMetrics(c *metrics.Collectors) http.Handler {
	return c.Handler()
}
