package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler serves the assistant's registry, or 404 when metrics are
// not wired.
func (g *Gateway) metricsHandler() http.Handler {
	if g.metrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(g.metrics.Registry(), promhttp.HandlerOpts{})
}
