// Package metrics exposes wizard activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts wizard transitions, autosaves and HTTP requests. It
// implements wizard.Observer.
type Recorder struct {
	gatherer prometheus.Gatherer

	transitions *prometheus.CounterVec
	autosaves   *prometheus.CounterVec
	sessions    prometheus.Gauge
	requests    *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry so
// tests and multiple servers in one process do not collide.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		gatherer: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_wizard_transitions_total",
			Help: "Wizard actions by wizard, action and result.",
		}, []string{"wizard", "action", "result"}),
		autosaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_autosaves_total",
			Help: "Background draft saves by wizard and outcome.",
		}, []string{"wizard", "outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intake_sessions_active",
			Help: "Wizard sessions currently mounted.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
	reg.MustRegister(r.transitions, r.autosaves, r.sessions, r.requests)
	return r
}

// Transition records a wizard action.
func (r *Recorder) Transition(wizard, action, result string, _, _ int) {
	r.transitions.WithLabelValues(wizard, action, result).Inc()
}

// Autosave records the outcome of a background save.
func (r *Recorder) Autosave(wizard, outcome string) {
	r.autosaves.WithLabelValues(wizard, outcome).Inc()
}

// SessionOpened and SessionClosed track mounted sessions.
func (r *Recorder) SessionOpened() { r.sessions.Inc() }

func (r *Recorder) SessionClosed() { r.sessions.Dec() }

// ObserveRequest records an HTTP request.
func (r *Recorder) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	r.requests.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
