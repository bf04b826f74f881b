// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/warden/internal/auth"
)

// Metrics contains the warden Prometheus metrics. It implements auth.Recorder.
type Metrics struct {
	LoginsTotal          *prometheus.CounterVec
	SessionsCreated      prometheus.Counter
	SessionValidations   *prometheus.CounterVec
	SessionsSweptTotal   prometheus.Counter
	AccessDeniedTotal    *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDurations *prometheus.HistogramVec
}

// NewMetrics creates and registers the warden metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_session_validations_total",
				Help: "Total number of session validations by outcome",
			},
			[]string{"outcome"},
		),
		SessionsSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_sessions_swept_total",
			Help: "Total number of expired sessions deleted",
		}),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_access_denied_total",
				Help: "Total number of denied requests by reason",
			},
			[]string{"reason"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.LoginsTotal,
		m.SessionsCreated,
		m.SessionValidations,
		m.SessionsSweptTotal,
		m.AccessDeniedTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurations,
	)
	return m
}

// LoginAttempt implements auth.Recorder.
func (m *Metrics) LoginAttempt(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// SessionCreated implements auth.Recorder.
func (m *Metrics) SessionCreated() {
	m.SessionsCreated.Inc()
}

// SessionValidated implements auth.Recorder.
func (m *Metrics) SessionValidated(outcome string) {
	m.SessionValidations.WithLabelValues(outcome).Inc()
}

// SessionsSwept implements auth.Recorder.
func (m *Metrics) SessionsSwept(count int64) {
	if count > 0 {
		m.SessionsSweptTotal.Add(float64(count))
	}
}

// AccessDenied implements auth.Recorder.
func (m *Metrics) AccessDenied(reason string) {
	m.AccessDeniedTotal.WithLabelValues(reason).Inc()
}

// ObserveRequest records one served HTTP request. route is the matched
// route template, never the raw path.
func (m *Metrics) ObserveRequest(route string, status int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDurations.WithLabelValues(route).Observe(seconds)
}

var _ auth.Recorder = (*Metrics)(nil)
