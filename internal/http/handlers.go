package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pennywise/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Truncate(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		s.logger.LogError(ctx, "Readiness check failed", err, log.ComponentStorage, "ping", nil)
		checks["store"] = "unavailable"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["cache"] = map[string]any{
		"entries": s.dashboard.Cache().Size(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.trace.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	cacheStats := s.dashboard.Cache().Stats()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_us", "gauge", "Average response time in microseconds", traceMetrics.AverageResponseTime)
	metric("records_cache_hits_total", "counter", "Record cache hits", cacheStats.Hits)
	metric("records_cache_misses_total", "counter", "Record cache misses", cacheStats.Misses)
	metric("records_cache_evictions_total", "counter", "Record cache evictions", cacheStats.Evictions)
	metric("records_cache_entries", "gauge", "Current record cache entries", cacheStats.Size)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged as probes", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Requests blocked as probes", securityMetrics.BlockedRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.startedAt).Seconds()))
}
