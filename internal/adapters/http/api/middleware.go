package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/fitrec/pkg/metrics"
)

// Status codes the handlers emit that net/http has no constant for, plus
// the boundaries used when classifying failures.
const (
	statusClientClosed  = 499
	statusBadRequest    = http.StatusBadRequest
	statusInternalError = http.StatusInternalServerError
)

const defaultMaxBodyBytes = 64 << 10

// errorTypes names the failures worth telling apart on dashboards. Other
// 4xx and 5xx codes fall back to client_error and server_error.
var errorTypes = map[int]string{ //nolint:gochecknoglobals // read-only lookup
	http.StatusNotFound:           "not_found",
	http.StatusTooManyRequests:    "rate_limit",
	statusClientClosed:            "canceled",
	http.StatusBadGateway:         "upstream_error",
	http.StatusServiceUnavailable: "shutting_down",
}

// MetricsMiddleware records request count and latency per endpoint, and
// error metrics for responses of 400 and above.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		code := strconv.Itoa(rw.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, ms)
		if rw.statusCode < statusBadRequest {
			return
		}
		kind := getErrorType(rw.statusCode)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		metrics.RecordErrorByType(kind, getErrorSeverity(rw.statusCode))
		metrics.RecordErrorLatency("http", kind, ms)
	}
}

// limited caps the request body at the server's configured size.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next(w, r)
	}
}

func getErrorType(statusCode int) string {
	if kind, ok := errorTypes[statusCode]; ok {
		return kind
	}
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// getErrorSeverity ranks server-side failures above client mistakes; a
// client hanging up is the least interesting of all.
func getErrorSeverity(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "high"
	case statusCode == statusClientClosed:
		return "low"
	case statusCode >= statusBadRequest:
		return "medium"
	default:
		return "low"
	}
}

// responseWriter remembers the status code written through it.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
