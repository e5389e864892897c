package pebblestore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_storage_read_seconds",
		Help:    "Latency of point reads against the queue store",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
	commitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_storage_commit_seconds",
		Help:    "Latency of batch commits against the queue store",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
	commitBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_storage_commit_bytes",
		Help:    "Size of committed batches",
		Buckets: prometheus.ExponentialBuckets(64, 2, 12),
	})
)

// PromMetrics is a MetricsHook backed by Prometheus histograms.
type PromMetrics struct{}

func (PromMetrics) ObserveRead(elapsed time.Duration, _ int) {
	readSeconds.Observe(elapsed.Seconds())
}

func (PromMetrics) ObserveCommit(elapsed time.Duration, bytes int) {
	commitSeconds.Observe(elapsed.Seconds())
	commitBytes.Observe(float64(bytes))
}
