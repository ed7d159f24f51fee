package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	QuestionsAnswered  metric.Int64Counter
	QuestionsDenied    metric.Int64Counter
	IndexCacheHits     metric.Int64Counter
	IndexCacheMisses   metric.Int64Counter
	EmbeddingDuration  metric.Float64Histogram
	GenerationDuration metric.Float64Histogram
	ReportsProcessed   metric.Int64Counter
	AuditEventsLogged  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("health-records-platform")

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
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	questionsAnswered, err := meter.Int64Counter(
		"rag.questions.answered",
		metric.WithDescription("Questions answered successfully"),
	)
	if err != nil {
		return nil, err
	}

	questionsDenied, err := meter.Int64Counter(
		"rag.questions.denied",
		metric.WithDescription("Questions denied by the consent gate"),
	)
	if err != nil {
		return nil, err
	}

	indexCacheHits, err := meter.Int64Counter(
		"rag.index_cache.hits",
		metric.WithDescription("Resident index cache hits"),
	)
	if err != nil {
		return nil, err
	}

	indexCacheMisses, err := meter.Int64Counter(
		"rag.index_cache.misses",
		metric.WithDescription("Resident index cache misses"),
	)
	if err != nil {
		return nil, err
	}

	embeddingDuration, err := meter.Float64Histogram(
		"gemini.embedding.duration",
		metric.WithDescription("Embedding call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	generationDuration, err := meter.Float64Histogram(
		"gemini.generation.duration",
		metric.WithDescription("Answer generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	reportsProcessed, err := meter.Int64Counter(
		"reports.processed.total",
		metric.WithDescription("Reports processed through the ingestion pipeline"),
	)
	if err != nil {
		return nil, err
	}

	auditEventsLogged, err := meter.Int64Counter(
		"audit.events.logged",
		metric.WithDescription("Total audit events logged"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		QuestionsAnswered:  questionsAnswered,
		QuestionsDenied:    questionsDenied,
		IndexCacheHits:     indexCacheHits,
		IndexCacheMisses:   indexCacheMisses,
		EmbeddingDuration:  embeddingDuration,
		GenerationDuration: generationDuration,
		ReportsProcessed:   reportsProcessed,
		AuditEventsLogged:  auditEventsLogged,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordQuestion records the outcome of one question
func (m *Metrics) RecordQuestion(role string, denied bool) {
	attrs := []attribute.KeyValue{
		attribute.String("actor.role", role),
	}
	if denied {
		m.QuestionsDenied.Add(context.Background(), 1, metric.WithAttributes(attrs...))
		return
	}
	m.QuestionsAnswered.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordIndexCache records a resident cache hit or miss
func (m *Metrics) RecordIndexCache(hit bool) {
	if hit {
		m.IndexCacheHits.Add(context.Background(), 1)
		return
	}
	m.IndexCacheMisses.Add(context.Background(), 1)
}

// RecordEmbedding records one embedding call
func (m *Metrics) RecordEmbedding(duration float64, batchSize int) {
	attrs := []attribute.KeyValue{
		attribute.Int("gemini.batch_size", batchSize),
	}
	m.EmbeddingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordGeneration records one answer generation call
func (m *Metrics) RecordGeneration(duration float64, success bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("gemini.success", success),
	}
	m.GenerationDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordReportProcessed records one ingestion pipeline run
func (m *Metrics) RecordReportProcessed(status string) {
	attrs := []attribute.KeyValue{
		attribute.String("report.status", status),
	}
	m.ReportsProcessed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordAuditEvent records audit event logging
func (m *Metrics) RecordAuditEvent(action, resource string) {
	attrs := []attribute.KeyValue{
		attribute.String("audit.action", action),
		attribute.String("audit.resource", resource),
	}

	m.AuditEventsLogged.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
