package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	EmbeddingDuration   metric.Float64Histogram
	ChunksEmbedded      metric.Int64Counter
	SearchCounter       metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("wiki-knowledge-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"ai.tokens.used",
		metric.WithDescription("Tokens consumed by AI calls"),
	)
	if err != nil {
		return nil, err
	}

	embeddingDuration, err := meter.Float64Histogram(
		"embedding.task.duration",
		metric.WithDescription("Embedding task duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	chunksEmbedded, err := meter.Int64Counter(
		"embedding.chunks.total",
		metric.WithDescription("Chunks embedded, source and derived"),
	)
	if err != nil {
		return nil, err
	}

	searchCounter, err := meter.Int64Counter(
		"search.requests.total",
		metric.WithDescription("Similarity search requests"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		EmbeddingDuration:   embeddingDuration,
		ChunksEmbedded:      chunksEmbedded,
		SearchCounter:       searchCounter,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}

// RecordTokensUsed records AI token consumption
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	m.TokensUsed.Add(context.Background(), tokens,
		metric.WithAttributes(attribute.String("model", model)))
}

// RecordEmbedding records one finished embedding task
func (m *Metrics) RecordEmbedding(duration float64, status string, chunks int64) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.EmbeddingDuration.Record(ctx, duration, attrs)
	m.ChunksEmbedded.Add(ctx, chunks, attrs)
}

// RecordSearch records one similarity search
func (m *Metrics) RecordSearch(wikiID string, hits int64) {
	m.SearchCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("wiki_id", wikiID),
			attribute.Int64("hits", hits),
		))
}

// RecordCircuitBreakerState records a breaker transition
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	m.CircuitBreakerState.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("state", state),
		))
}
