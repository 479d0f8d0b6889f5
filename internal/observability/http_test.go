package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastqa/forecastqa/internal/config"
)

func TestRequestIDMiddlewarePreservesIncomingID(t *testing.T) {
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", RequestIDFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "req-1", rr.Header().Get(requestIDHeader))
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, RequestIDFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestRequestIDContextHelpers(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc123")
	assert.Equal(t, "abc123", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/v1/ask", routeLabel("/v1/ask"))
	assert.Equal(t, "/v1/ready", routeLabel("/v1/ready"))
	assert.Equal(t, "other", routeLabel("/v1/ask/extra"))
	assert.Equal(t, "other", routeLabel("/admin"))
}

func TestResponseMeterDefaultsToOK(t *testing.T) {
	rr := httptest.NewRecorder()
	meter := &responseMeter{ResponseWriter: rr}

	n, err := meter.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, 5, meter.bytes)
	assert.Equal(t, http.StatusOK, meter.Status())
}

func TestResponseMeterKeepsFirstStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	meter := &responseMeter{ResponseWriter: rr}

	meter.WriteHeader(http.StatusTooManyRequests)
	meter.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusTooManyRequests, meter.Status())
}

func TestLoggingMiddlewareEmitsRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{
		Profile: config.ProfileTest,
		Service: config.ServiceConfig{Name: "forecastqa-api"},
		Observability: config.ObservabilityConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  true,
		},
	}, &buf)

	handler := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	req.Header.Set(requestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "http_request", line["msg"])
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, http.MethodPost, line["method"])
	assert.Equal(t, "/v1/ask", line["route"])
	assert.Equal(t, float64(http.StatusAccepted), line["status"])
	assert.Equal(t, float64(2), line["bytes"])
}

func TestLoggingMiddlewareSkipsMetricsScrapes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{
		Profile: config.ProfileTest,
		Service: config.ServiceConfig{Name: "forecastqa-api"},
		Observability: config.ObservabilityConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  true,
		},
	}, &buf)

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))

	assert.Zero(t, buf.Len())
}
