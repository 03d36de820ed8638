package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and disables recording.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	UpstreamRetries prometheus.Counter
	OAuthLogins     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_http_requests_total",
			Help: "API requests served, by method and path.",
		}, []string{"method", "path"}),
		UpstreamRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_upstream_retries_total",
			Help: "Retried outbound provider requests.",
		}),
		OAuthLogins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_oauth_logins_total",
			Help: "OAuth login attempts, by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
}
