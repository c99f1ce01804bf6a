package gateway

import (
	"net/http"

	"github.com/flemzord/policychat/internal/health"
)

// handleHealth runs the health checks. It answers 200 when the service
// can take turns (ok or degraded) and 503 when a critical component is
// down.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.checker == nil {
			writeJSON(w, http.StatusOK, health.Report{Status: health.StatusOK})
			return
		}
		report := g.checker.Check(r.Context())
		status := http.StatusOK
		if report.Status == health.StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}
