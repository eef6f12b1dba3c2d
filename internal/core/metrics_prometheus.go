package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports service metrics:
// elncore_parse_total{op,status}, elncore_parse_duration_seconds{op} and
// elncore_archives_emitted_total{outcome}.
type PrometheusRecorder struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	archives *prometheus.CounterVec
}

// NewPrometheusRecorder creates the metrics and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "elncore",
			Name:      "parse_total",
			Help:      "Service operations by outcome",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "elncore",
			Name:      "parse_duration_seconds",
			Help:      "Duration of service operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "elncore",
			Name:      "archives_emitted_total",
			Help:      "Auxiliary archive emissions by outcome",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{r.total, r.duration, r.archives} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records a service operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.total.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveArchive counts an archive emission.
func (r *PrometheusRecorder) ObserveArchive(outcome string) {
	r.archives.WithLabelValues(outcome).Inc()
}
