// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package gateway

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fm_gateway_tool_calls_total",
			Help: "Total number of tool calls handled by the gateway",
		},
		[]string{"tool", "status"},
	)
	promToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fm_gateway_tool_duration_milliseconds",
			Help:    "Tool call duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		},
		[]string{"tool"},
	)
	promAuthRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fm_gateway_auth_retries_total",
			Help: "Total number of re-authentication cycles triggered by unauthorized responses",
		},
	)
)

func init() {
	prometheus.MustRegister(promToolCalls)
	prometheus.MustRegister(promToolDuration)
	prometheus.MustRegister(promAuthRetries)
}
