package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const readinessTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady checks the templates and that the finance backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	notReady := func() {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		notReady()
	} else {
		checks["templates"] = "ok"
	}

	if err := s.backend.Ping(ctx); err != nil {
		checks["backend"] = fmt.Sprintf("failed: %v", err)
		notReady()
	} else {
		checks["backend"] = "ok"
	}

	stats := s.dashboards.Stats()
	checks["dashboards"] = map[string]any{
		"entries": stats.Size,
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	dashboards := s.dashboards.Stats()
	m := s.appMetrics

	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	writeMetric(w, "http_server_errors_total", "HTTP responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	writeMetric(w, "http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)

	writeMetric(w, "logins_total", "Successful logins", "counter", atomic.LoadInt64(&m.logins))
	writeMetric(w, "login_failures_total", "Failed login or registration attempts", "counter", atomic.LoadInt64(&m.loginFailures))
	writeMetric(w, "registrations_total", "Accounts registered", "counter", atomic.LoadInt64(&m.registrations))
	writeMetric(w, "transactions_created_total", "Transactions entered manually", "counter", atomic.LoadInt64(&m.transactions))
	writeMetric(w, "uploads_total", "Transaction files uploaded", "counter", atomic.LoadInt64(&m.uploads))
	writeMetric(w, "chat_questions_total", "Questions relayed to the assistant", "counter", atomic.LoadInt64(&m.chatQuestions))

	writeMetric(w, "dashboards_active", "Dashboards held in memory", "gauge", dashboards.Size)
	writeMetric(w, "dashboard_cache_hits_total", "Dashboard lookups served from memory", "counter", dashboards.Hits)
	writeMetric(w, "dashboard_cache_misses_total", "Dashboard lookups that created a dashboard", "counter", dashboards.Misses)
	writeMetric(w, "dashboard_cache_evictions_total", "Dashboards dropped by expiry, capacity or logout", "counter", dashboards.Evictions)

	writeMetric(w, "rate_limit_rejected_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.Rejected)
	writeMetric(w, "active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	writeMetric(w, "suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	writeMetric(w, "blocked_requests_total", "Suspicious requests blocked", "counter", securityMetrics.BlockedRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(m.uptime).Seconds())
}

func writeMetric[T int | int64 | uint64](w io.Writer, name, help, kind string, value T) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, value)
}
