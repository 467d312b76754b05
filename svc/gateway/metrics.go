package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts outcomes at each component boundary. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	logins    *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	guard     *prometheus.CounterVec
	logouts   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "login_attempts_total",
			Help:      "Login initiations by mode and result.",
		}, []string{"mode", "result"}),
		callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "callback_finalizations_total",
			Help:      "Callback artifact exchanges by result.",
		}, []string{"result"}),
		guard: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "guard_decisions_total",
			Help:      "Protected route decisions.",
		}, []string{"decision"}),
		logouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
	}
}

func (m *Metrics) login(mode string, err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(mode, resultLabel(err)).Inc()
}

func (m *Metrics) callback(err error) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) decision(d string) {
	if m == nil {
		return
	}
	m.guard.WithLabelValues(d).Inc()
}

func (m *Metrics) logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errorKey(err)
}
