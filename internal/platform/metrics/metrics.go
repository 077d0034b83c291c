// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes the Prometheus counters of the storefront BFF.

Architecture:

  - RED: request rate, status and latency for every routed request.
  - Domain: gate decisions, auth-failure handling, rate-limit rejections,
    and credential exchanges.
  - Isolation: each [Metrics] owns its registry, so tests can build as many as
    they like without colliding on the global default registerer.

Every recording method is safe on a nil receiver; components built without
metrics simply record nothing.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics groups every collector registered by the server.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	GateDecisions       *prometheus.CounterVec
	AuthFailures        *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
	CredentialExchanges *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request latency",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Authorization gate decisions by route classification",
			},
			[]string{"classification", "decision"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_failures_total",
				Help:      "Failed backend calls observed by the outbound pipeline",
			},
			[]string{"category"},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Requests rejected by a fixed-window limiter",
			},
			[]string{"scope"},
		),
		CredentialExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_exchanges_total",
				Help:      "Credential exchanges with the backend by method and outcome",
			},
			[]string{"method", "outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GateDecisions,
		m.AuthFailures,
		m.RateLimitRejections,
		m.CredentialExchanges,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// # Recording

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// GateDecision records one gate outcome.
func (m *Metrics) GateDecision(classification, decision string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(classification, decision).Inc()
}

// BackendFailure records a failed backend call by category.
func (m *Metrics) BackendFailure(category string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(category).Inc()
}

// RateLimited records a limiter rejection.
func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.WithLabelValues(scope).Inc()
}

// CredentialExchange records a login, federated login or registration attempt.
func (m *Metrics) CredentialExchange(method, outcome string) {
	if m == nil {
		return
	}
	m.CredentialExchanges.WithLabelValues(method, outcome).Inc()
}
