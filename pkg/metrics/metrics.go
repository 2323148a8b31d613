// Package metrics provides the Prometheus registry reference and the
// exposition handler for the gateway.
// All metrics are defined in their respective packages (cache, origin,
// gateway, ratelimit, server) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source of the exposed metrics.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics exposition handler.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - rmgw_cache_hits_total{backend} (Counter): Cache hits by backend (memory, redis)
//   - rmgw_cache_misses_total{backend} (Counter): Cache misses by backend
//   - rmgw_cache_entries{backend="memory"} (Gauge): Entries held by the in-process store
//   - rmgw_cache_expired_total{backend} (Counter): Entries removed after expiry
//   - rmgw_cache_errors_total{operation} (Counter): Absorbed backend errors (get, set, delete, clear, connect)
//
// Origin Metrics (pkg/origin):
//   - rmgw_origin_requests_total{resource, outcome} (Counter): Origin calls by outcome (found, not_found, error)
//   - rmgw_origin_request_duration_seconds{resource} (Histogram): Origin call duration
//   - rmgw_origin_errors_total{class} (Counter): Failures by class (network, timeout, server, client, decode)
//
// Gateway Metrics (pkg/gateway):
//   - rmgw_gateway_resolve_total{resource, result} (Counter): Resolve results (hit, miss, not_found, error)
//   - rmgw_gateway_coalesced_total (Counter): Resolves served by a shared in-flight fetch
//
// Rate Limit Metrics (pkg/ratelimit):
//   - rmgw_ratelimit_decisions_total{decision, backend} (Counter): Admission decisions (allowed, rejected)
//   - rmgw_ratelimit_windows (Gauge): Windows tracked by the in-process limiter
//   - rmgw_ratelimit_errors_total (Counter): Backend errors (requests admitted fail-open)
//
// HTTP Metrics (internal/server):
//   - rmgw_http_requests_total{route, status} (Counter): Inbound requests by route pattern and status
//   - rmgw_http_request_duration_seconds{route} (Histogram): Inbound request duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(rmgw_cache_hits_total[5m])) /
//   (sum(rate(rmgw_cache_hits_total[5m])) + sum(rate(rmgw_cache_misses_total[5m])))
//
//   # Origin Error Rate
//   sum(rate(rmgw_origin_errors_total[5m])) by (class)
//
//   # Rejected Callers
//   rate(rmgw_ratelimit_decisions_total{decision="rejected"}[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(rmgw_origin_request_duration_seconds_bucket[5m]))
