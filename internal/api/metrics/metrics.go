// Package metrics defines and registers the Prometheus metrics of the Rechart
// client. It is the single source of truth for metric names, labels, and
// help strings.
//
// All collectors register with the default Prometheus registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rechart"

// ── API client metrics ───────────────────────────────────────────────────────

// RequestsTotal counts requests that reached the API server or failed on the way.
// Labels:
//   - method: HTTP verb (e.g. "GET")
//   - class: "success", "not_authenticated", "not_allowed", "other",
//     "transport_error" or "rejected" (a request interceptor failed)
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of API requests, by method and response class.",
	},
	[]string{"method", "class"},
)

// TokenFetchTotal counts identity token lookups made for credentialed requests.
// Label:
//   - result: "ok" or "error"
var TokenFetchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "token_fetch_total",
		Help:      "Total number of identity token fetches, by result.",
	},
	[]string{"result"},
)

// RequestDuration measures the round trip of a request, interceptors included.
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Duration of API requests including credential injection.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// ── Storage metrics ──────────────────────────────────────────────────────────

// StoreOperationsTotal counts persistence operations.
// Labels:
//   - namespace: "local" or "session"
//   - op: "read", "write" or "delete"
var StoreOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Total number of persistence operations, by namespace and op.",
	},
	[]string{"namespace", "op"},
)

// StoreEvictionsTotal counts slots dropped because their payload could not be decoded.
var StoreEvictionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "evictions_total",
		Help:      "Total number of undecodable slots evicted, by namespace.",
	},
	[]string{"namespace"},
)
