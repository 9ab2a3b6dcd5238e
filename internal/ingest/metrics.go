package ingest

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	batchLatency    prometheus.Histogram
	rejectedRecords prometheus.Counter
	batchErrors     prometheus.Counter
}

func initMetrics(register bool) *metrics {
	m := &metrics{
		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cdcrouter",
			Subsystem: "ingest",
			Name:      "batch_latency_seconds",
			Help:      "Time to convert and dispatch one stream event",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		rejectedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdcrouter",
			Subsystem: "ingest",
			Name:      "rejected_records_total",
			Help:      "Total number of stream records that could not be converted",
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdcrouter",
			Subsystem: "ingest",
			Name:      "batch_errors_total",
			Help:      "Total number of stream events rejected as a whole",
		}),
	}

	if register {
		prometheus.MustRegister(
			m.batchLatency,
			m.rejectedRecords,
			m.batchErrors,
		)
	}
	return m
}
