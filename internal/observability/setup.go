package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger

	// Metrics
	moderationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Total number of moderation actions by action and result code",
		},
		[]string{"action", "code"},
	)

	scheduledJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_jobs_total",
			Help: "Total number of deferred jobs scheduled",
		},
		[]string{"kind"},
	)

	jobExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_executions_total",
			Help: "Total number of deferred job executions by outcome",
		},
		[]string{"kind", "status"},
	)

	jobExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_execution_duration_seconds",
			Help:    "Time spent executing deferred jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	_ = ctx

	// Initialize logger
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	// Register metrics
	prometheus.MustRegister(moderationActionsTotal)
	prometheus.MustRegister(scheduledJobsTotal)
	prometheus.MustRegister(jobExecutionsTotal)
	prometheus.MustRegister(jobExecutionDuration)

	// Setup OpenTelemetry (simplified setup)
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	// Start Prometheus metrics endpoint
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// RecordModerationAction records the outcome of one moderation operation.
func RecordModerationAction(action, code string) {
	moderationActionsTotal.WithLabelValues(action, code).Inc()
}

// RecordScheduledJob records a deferred job registration.
func RecordScheduledJob(kind string) {
	scheduledJobsTotal.WithLabelValues(kind).Inc()
}

// RecordJobExecution records a deferred job execution outcome.
func RecordJobExecution(kind, status string) {
	jobExecutionsTotal.WithLabelValues(kind, status).Inc()
}

// StartJobExecution returns a function that records the execution duration.
func StartJobExecution(kind string) func(status string) {
	timer := prometheus.NewTimer(jobExecutionDuration.WithLabelValues(kind))
	return func(status string) {
		_ = status
		timer.ObserveDuration()
	}
}
