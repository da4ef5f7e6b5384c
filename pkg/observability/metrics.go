// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the tiefsee MCP server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// HTTPRequestsTotal counts inbound HTTP requests (streamable-http mode)
	// by method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiefsee_http_requests_total",
			Help: "Inbound HTTP requests",
		},
		[]string{"method", "status"},
	)

	// HTTPRequestDuration records inbound HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiefsee_http_request_duration_seconds",
			Help:    "Inbound HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// APIRequestsTotal counts upstream DeepSeek API calls by endpoint path
	// and status class ("error" for transport-level failures).
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiefsee_api_requests_total",
			Help: "Upstream DeepSeek API requests",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration records upstream call latency in seconds,
	// including full SSE stream drain.
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiefsee_api_request_duration_seconds",
			Help:    "Upstream DeepSeek API latency",
			Buckets: LLMBuckets,
		},
		[]string{"endpoint"},
	)

	// FallbackTotal counts single-retry fallbacks by kind
	// ("reasoner" or "beta_base").
	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiefsee_fallback_total",
			Help: "Fallback retries",
		},
		[]string{"kind"},
	)

	// StreamChunksTotal counts SSE chunks aggregated client-side by endpoint.
	StreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiefsee_stream_chunks_total",
			Help: "Aggregated SSE stream chunks",
		},
		[]string{"endpoint"},
	)

	// ToolCallsTotal counts MCP tool invocations by tool name and outcome.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiefsee_tool_calls_total",
			Help: "MCP tool calls",
		},
		[]string{"tool", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		APIRequestsTotal,
		APIRequestDuration,
		FallbackTotal,
		StreamChunksTotal,
		ToolCallsTotal,
	)
}
