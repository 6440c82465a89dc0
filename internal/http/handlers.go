package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the storage backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "check", "storage", "error", err)
			checks["storage"] = "failed"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMetrics exposes counters in Prometheus text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP cashflow_http_requests_total Total HTTP requests\n")
	fmt.Fprintf(w, "# TYPE cashflow_http_requests_total counter\n")
	fmt.Fprintf(w, "cashflow_http_requests_total %d\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP cashflow_http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE cashflow_http_server_errors_total counter\n")
	fmt.Fprintf(w, "cashflow_http_server_errors_total %d\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP cashflow_http_response_time_avg_microseconds Mean response time\n")
	fmt.Fprintf(w, "# TYPE cashflow_http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "cashflow_http_response_time_avg_microseconds %d\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP cashflow_rate_limit_hits_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE cashflow_rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "cashflow_rate_limit_hits_total %d\n", rateMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP cashflow_rate_limit_clients Clients tracked by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE cashflow_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "cashflow_rate_limit_clients %d\n", rateMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP cashflow_suspicious_requests_total Requests flagged outside the API surface\n")
	fmt.Fprintf(w, "# TYPE cashflow_suspicious_requests_total counter\n")
	fmt.Fprintf(w, "cashflow_suspicious_requests_total %d\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP cashflow_uptime_seconds Process uptime\n")
	fmt.Fprintf(w, "# TYPE cashflow_uptime_seconds gauge\n")
	fmt.Fprintf(w, "cashflow_uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}
