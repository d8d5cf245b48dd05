package echoportal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomo/portal/core/guard"
	"github.com/trezcool/masomo/portal/core/session"
)

const metricsNamespace = "portal"

// Metrics counts what the guards and sessions do.
type Metrics struct {
	edgeRedirects      prometheus.Counter
	guardDecisions     *prometheus.CounterVec
	sessionResolutions *prometheus.CounterVec
}

// NewMetrics registers the portal collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		edgeRedirects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "edge_redirects_total",
			Help:      "Requests to protected paths sent to the login page for lack of a session cookie",
		}),

		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by action",
		}, []string{"action"}),

		sessionResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_resolutions_total",
			Help:      "Session transitions by resulting state",
		}, []string{"state"}),
	}
}

// MetricsHandler serves the metrics gathered by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) edgeRedirect() {
	if m == nil {
		return
	}
	m.edgeRedirects.Inc()
}

func (m *Metrics) guardDecision(d guard.Decision) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(d.Action.String()).Inc()
}

func (m *Metrics) sessionTransition(snap session.Snapshot) {
	if m == nil {
		return
	}
	m.sessionResolutions.WithLabelValues(snap.State.String()).Inc()
}
