// Package obs holds the Prometheus instrumentation for the session core.
package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	forcedLogoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_forced_logouts_total",
			Help: "Logouts forced by the credential-expired signal.",
		},
	)

	impersonationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_impersonations_total",
			Help: "Impersonation attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers the metrics with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(loginsTotal, forcedLogoutsTotal, impersonationsTotal)
	})
}

// LoginAttempt records a login outcome ("success" or "failure").
func LoginAttempt(outcome string) {
	loginsTotal.WithLabelValues(outcome).Inc()
}

// ForcedLogout records a logout triggered by credential expiry.
func ForcedLogout() {
	forcedLogoutsTotal.Inc()
}

// Impersonation records an impersonation outcome ("started", "denied" or
// "stopped").
func Impersonation(outcome string) {
	impersonationsTotal.WithLabelValues(outcome).Inc()
}
