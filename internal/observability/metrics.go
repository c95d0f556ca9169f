// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels shared by the request counters.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// Metrics contains the client's Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AuthRequestsTotal  *prometheus.CounterVec
	WorldRequestsTotal *prometheus.CounterVec
	SessionActive      prometheus.Gauge
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// NewMetrics creates and registers the client metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asciimmo_auth_requests_total",
				Help: "Total number of auth service operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		WorldRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asciimmo_world_requests_total",
				Help: "Total number of world map requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		SessionActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "asciimmo_session_active",
				Help: "1 while a session is cached, 0 otherwise",
			},
		),
	}

	reg.MustRegister(m.AuthRequestsTotal)
	reg.MustRegister(m.WorldRequestsTotal)
	reg.MustRegister(m.SessionActive)

	return m
}

// RecordAuth counts one auth service operation.
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordWorld counts one world map request. source is "service" or "fallback".
func (m *Metrics) RecordWorld(source, outcome string) {
	if m == nil {
		return
	}
	m.WorldRequestsTotal.WithLabelValues(source, outcome).Inc()
}

// SetSessionActive reflects whether a session is currently cached.
func (m *Metrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionActive.Set(1)
		return
	}
	m.SessionActive.Set(0)
}
