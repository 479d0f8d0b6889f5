package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastqa_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastqa_http_request_seconds",
			Help:    "HTTP request latency by method, route and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	askQuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastqa_ask_questions_total",
			Help: "Total number of ask requests by terminal outcome.",
		},
		[]string{"outcome"},
	)
	askQueryTypeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastqa_ask_query_type_total",
			Help: "Total number of successfully compiled intents by query type.",
		},
		[]string{"query_type"},
	)
	llmRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastqa_llm_request_seconds",
			Help:    "Chat completion latency by request kind.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"kind"},
	)
	llmRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastqa_llm_retries_total",
			Help: "Total number of chat completion retries after 5xx responses.",
		},
	)
	fallbackAnswersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastqa_fallback_answers_total",
			Help: "Total number of answers served from deterministic templates.",
		},
	)
	dbQuerySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecastqa_db_query_seconds",
			Help:    "Forecast store query latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestSeconds,
		askQuestionsTotal,
		askQueryTypeTotal,
		llmRequestSeconds,
		llmRetriesTotal,
		fallbackAnswersTotal,
		dbQuerySeconds,
	)
}

func ObserveAskOutcome(outcome string) {
	askQuestionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveQueryType(queryType string) {
	askQueryTypeTotal.WithLabelValues(queryType).Inc()
}

func ObserveLLMRequest(kind string, elapsed time.Duration) {
	llmRequestSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func IncrementLLMRetries() {
	llmRetriesTotal.Inc()
}

func IncrementFallbackAnswers() {
	fallbackAnswersTotal.Inc()
}

func ObserveDBQuery(elapsed time.Duration) {
	dbQuerySeconds.Observe(elapsed.Seconds())
}
