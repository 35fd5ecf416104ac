package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Step labels used on otpgate_steps_total.
const (
	stepStart    = "start"
	stepUsername = "username"
	stepPassword = "password"
	stepOTP      = "otp"
)

type metrics struct {
	registry       *prometheus.Registry
	steps          *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otpgate",
			Name:      "steps_total",
			Help:      "Login steps handled, by step and result.",
		}, []string{"step", "result"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "otpgate",
			Name:      "active_sessions",
			Help:      "Number of live browser sessions.",
		}),
	}
}

func (m *metrics) observeStep(step string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.steps.WithLabelValues(step, result).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
