package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Completed code-exchange logins by outcome.",
		},
		[]string{"outcome"},
	)

	rotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_rotations_total",
			Help: "Refresh token rotations by outcome.",
		},
		[]string{"outcome"},
	)

	authorizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_authorize_total",
			Help: "Request authorization decisions.",
		},
		[]string{"outcome"},
	)

	securityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_security_events_total",
			Help: "Security-sensitive failures (replay, signature mismatch, tenant mismatch).",
		},
		[]string{"event"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(loginsTotal, rotationsTotal, authorizeTotal, securityEventsTotal)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func CountLogin(outcome string)    { loginsTotal.WithLabelValues(outcome).Inc() }
func CountRotation(outcome string) { rotationsTotal.WithLabelValues(outcome).Inc() }

// CountAuthorize records a resolver decision: authorized, rejected or denied.
func CountAuthorize(outcome string) { authorizeTotal.WithLabelValues(outcome).Inc() }

func CountSecurityEvent(event string) { securityEventsTotal.WithLabelValues(event).Inc() }
