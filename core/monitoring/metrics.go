package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ml_service"

// Metrics holds every Prometheus collector exported by the service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Training job metrics
	JobsSubmitted    *prometheus.CounterVec
	JobsFinished     *prometheus.CounterVec
	TrainingDuration *prometheus.HistogramVec
	JobsByStatus     *prometheus.GaugeVec
	QueueDepth       prometheus.Gauge

	// Artifact metrics
	DatasetUploads *prometheus.CounterVec

	// Prediction metrics
	Predictions       *prometheus.CounterVec
	PredictedRows     prometheus.Counter
	ModelCacheLookups *prometheus.CounterVec
}

// NewMetrics registers the service collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		JobsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "training_jobs_submitted_total",
				Help:      "Total number of accepted training requests",
			},
			[]string{"model_type"},
		),
		JobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "training_jobs_finished_total",
				Help:      "Training jobs that reached a terminal status",
			},
			[]string{"model_type", "status"},
		),
		TrainingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "training_duration_seconds",
				Help:      "Wall time of training runs from start to terminal status",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"model_type", "status"},
		),
		JobsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "training_jobs",
				Help:      "Training jobs in the ledger by status",
			},
			[]string{"status"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "training_queue_depth",
				Help:      "Jobs waiting for a training worker",
			},
		),
		DatasetUploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_uploads_total",
				Help:      "Dataset uploads by file format",
			},
			[]string{"format"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Prediction requests by outcome",
			},
			[]string{"outcome"},
		),
		PredictedRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predicted_rows_total",
				Help:      "Rows scored by the prediction service",
			},
		),
		ModelCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_cache_lookups_total",
				Help:      "Model cache lookups by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.JobsSubmitted,
		m.JobsFinished,
		m.TrainingDuration,
		m.JobsByStatus,
		m.QueueDepth,
		m.DatasetUploads,
		m.Predictions,
		m.PredictedRows,
		m.ModelCacheLookups,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the underlying registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
}

// RecordJobSubmitted counts an accepted training request
func (m *Metrics) RecordJobSubmitted(modelType string) {
	if m == nil {
		return
	}
	m.JobsSubmitted.WithLabelValues(modelType).Inc()
}

// RecordJobFinished counts a job reaching status and observes its run time
func (m *Metrics) RecordJobFinished(modelType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(modelType, status).Inc()
	m.TrainingDuration.WithLabelValues(modelType, status).Observe(elapsed.Seconds())
}

// SetQueueDepth publishes the number of jobs waiting for a worker
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// RecordUpload counts a stored dataset by its source format
func (m *Metrics) RecordUpload(format string) {
	if m == nil {
		return
	}
	m.DatasetUploads.WithLabelValues(format).Inc()
}

// RecordPrediction counts a prediction request and the rows it scored
func (m *Metrics) RecordPrediction(outcome string, rows int) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(outcome).Inc()
	m.PredictedRows.Add(float64(rows))
}

// RecordCacheLookup counts a model cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ModelCacheLookups.WithLabelValues(result).Inc()
}
