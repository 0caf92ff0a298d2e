// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus instrumentation for tool calls and
// Fleep logins. Every method is safe on a nil *Metrics, so components
// take an optional pointer and never check it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fleep_mcp"

// ResultOK is the kind label recorded for successful tool calls.
const ResultOK = "ok"

// Metrics holds the collectors for one process.
type Metrics struct {
	toolCalls    *prometheus.CounterVec
	toolLatency  *prometheus.HistogramVec
	toolInFlight prometheus.Gauge
	logins       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg, or with the
// default registerer if reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Tool calls by tool name and result kind (ok or an error kind).",
		}, []string{"tool", "kind"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool call latency including validation and remote requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		toolInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_in_flight",
			Help:      "Tool calls currently executing.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fleep",
			Name:      "logins_total",
			Help:      "Fleep login attempts by reason (initial or reauth) and outcome.",
		}, []string{"reason", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.toolCalls, m.toolLatency, m.toolInFlight, m.logins)
	return m
}

// ToolCallStarted increments the in-flight gauge. Call the returned
// function when the call finishes.
func (m *Metrics) ToolCallStarted() func() {
	if m == nil {
		return func() {}
	}
	m.toolInFlight.Inc()
	return m.toolInFlight.Dec
}

// ObserveToolCall records one finished call. kind is ResultOK or the
// error kind.
func (m *Metrics) ObserveToolCall(tool, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, kind).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt. It satisfies
// fleep.LoginObserver.
func (m *Metrics) ObserveLogin(reason string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.logins.WithLabelValues(reason, outcome).Inc()
}
