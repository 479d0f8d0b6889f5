package observability

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware assigns every request an ID, honoring one supplied by
// the caller so a question can be traced across their logs and ours.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = rand.Text()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), requestID)))
	})
}

// routeLabel collapses paths onto this service's known routes so metric
// cardinality stays bounded no matter what paths callers request.
func routeLabel(path string) string {
	switch path {
	case "/v1/ask", "/v1/health", "/v1/ready", "/v1/metrics":
		return path
	default:
		return "other"
	}
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		meter := &responseMeter{ResponseWriter: w}
		next.ServeHTTP(meter, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(meter.Status())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestSeconds.WithLabelValues(r.Method, route, status).Observe(time.Since(started).Seconds())
	})
}

// LoggingMiddleware emits one line per request. Metrics scrapes are not
// logged; they would drown the ask traffic at any useful scrape interval.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			started := time.Now()
			meter := &responseMeter{ResponseWriter: w}
			next.ServeHTTP(meter, r)

			logger.InfoContext(r.Context(), "http_request",
				slog.String("method", r.Method),
				slog.String("route", routeLabel(r.URL.Path)),
				slog.String("path", r.URL.Path),
				slog.Int("status", meter.Status()),
				slog.Int64("duration_ms", time.Since(started).Milliseconds()),
				slog.Int("bytes", meter.bytes),
			)
		})
	}
}

// responseMeter captures what the handler wrote. A handler that never calls
// WriteHeader has implicitly answered 200.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(status int) {
	if m.status == 0 {
		m.status = status
	}
	m.ResponseWriter.WriteHeader(status)
}

func (m *responseMeter) Write(body []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(body)
	m.bytes += n
	return n, err
}

func (m *responseMeter) Status() int {
	if m.status == 0 {
		return http.StatusOK
	}
	return m.status
}
