package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "payment_stream"

var (
	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Source records by result (ok, malformed).",
		},
		[]string{"result"},
	)
	BrandResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brand_resolutions_total",
			Help:      "Brand normalization outcomes (canonical, fallback, passthrough).",
		},
		[]string{"outcome"},
	)
	ProjectionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_errors_total",
			Help:      "Records a projector rejected, per sink.",
		},
		[]string{"sink"},
	)
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches flushed per sink by result (ok, dropped).",
		},
		[]string{"sink", "result"},
	)
	FlushRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_retries_total",
			Help:      "Flush attempts beyond the first, per sink.",
		},
		[]string{"sink"},
	)
	FlushLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_latency_seconds",
			Help:      "Successful flush latency per sink.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
	PendingRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_records",
			Help:      "Records buffered or in flight, per sink.",
		},
		[]string{"sink"},
	)
	DedupedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deduped_rows_total",
			Help:      "Ledger rows suppressed as recent duplicates.",
		},
		[]string{"sink"},
	)
	CommittedOffset = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "committed_offset",
			Help:      "Last committed offset per partition.",
		},
		[]string{"partition"},
	)
	ReaderSuspended = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reader_suspended",
			Help:      "1 while polling is suspended by backpressure.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RecordsTotal,
		BrandResolutions,
		ProjectionErrors,
		BatchesTotal,
		FlushRetries,
		FlushLatency,
		PendingRecords,
		DedupedRows,
		CommittedOffset,
		ReaderSuspended,
	)
}
