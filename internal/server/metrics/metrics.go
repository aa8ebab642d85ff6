// Package metrics exposes Prometheus counters for session operations and an
// HTTP latency histogram. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authkeeper"

type Metrics struct {
	registry      *prometheus.Registry
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	registrations *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers all collectors on a private registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"result"})
	}

	m := &Metrics{
		registry:      reg,
		logins:        counter("login_total", "Login attempts by result."),
		refreshes:     counter("refresh_total", "Refresh token rotations by result."),
		logouts:       counter("logout_total", "Logouts by result."),
		registrations: counter("register_total", "Registrations by result."),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.logins, m.refreshes, m.logouts, m.registrations, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Result turns an operation outcome into a low-cardinality label value.
func Result(err error) string {
	if err == nil {
		return "success"
	}
	switch kind := common.Kind(err); {
	case errors.Is(kind, common.ErrorValidation):
		return "invalid"
	case errors.Is(kind, common.ErrorNotFound):
		return "not_found"
	case errors.Is(kind, common.ErrorUnauthenticated):
		return "unauthenticated"
	case errors.Is(kind, common.ErrorConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (m *Metrics) Login(err error) {
	if m != nil {
		m.logins.WithLabelValues(Result(err)).Inc()
	}
}

func (m *Metrics) Refresh(err error) {
	if m != nil {
		m.refreshes.WithLabelValues(Result(err)).Inc()
	}
}

func (m *Metrics) Logout(err error) {
	if m != nil {
		m.logouts.WithLabelValues(Result(err)).Inc()
	}
}

func (m *Metrics) Register(err error) {
	if m != nil {
		m.registrations.WithLabelValues(Result(err)).Inc()
	}
}

func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m != nil {
		m.httpDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
