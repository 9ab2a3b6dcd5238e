package dispatch

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	outcomes        *prometheus.CounterVec
	transportErrors *prometheus.CounterVec
	offloaded       prometheus.Counter
	recordLatency   prometheus.Histogram
	batchSize       prometheus.Histogram
}

func initMetrics(register bool) *metrics {
	m := &metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdcrouter",
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Terminal states of dispatched records",
		}, []string{"state"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdcrouter",
			Subsystem: "dispatch",
			Name:      "transport_errors_total",
			Help:      "Queue transport failures by classification",
		}, []string{"class"}),
		offloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdcrouter",
			Subsystem: "dispatch",
			Name:      "offloaded_total",
			Help:      "Messages whose payload was moved to external storage",
		}),
		recordLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cdcrouter",
			Subsystem: "dispatch",
			Name:      "record_latency_seconds",
			Help:      "Latency of one record pipeline from routing to send",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cdcrouter",
			Subsystem: "dispatch",
			Name:      "batch_size",
			Help:      "Number of records per dispatched batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}),
	}

	if register {
		prometheus.MustRegister(
			m.outcomes,
			m.transportErrors,
			m.offloaded,
			m.recordLatency,
			m.batchSize,
		)
	}
	return m
}

func (m *metrics) recordTimer() (stop func()) {
	timer := prometheus.NewTimer(m.recordLatency)
	stop = func() {
		timer.ObserveDuration()
	}
	return
}
