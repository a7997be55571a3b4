// Package metrics exposes Prometheus instrumentation for the store.
//
// Every recording method is safe on a nil *Metrics, so components built
// without a registry simply skip instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Replay outcome labels.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors registered for one store.
type Metrics struct {
	OperationsTotal      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	WALBytesWritten      prometheus.Counter
	WALSyncDuration      prometheus.Histogram
	ReplayRecordsTotal   *prometheus.CounterVec
	ReplayStopsTotal     *prometheus.CounterVec
	MemtableEntries      prometheus.Gauge
	SSTableBlocksWritten prometheus.Counter
	SSTableBytesWritten  prometheus.Counter
}

// New registers the store collectors with reg. A nil reg uses a fresh
// private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gravelkv_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gravelkv_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"operation"},
		),
		WALBytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gravelkv_wal_bytes_written_total",
				Help: "Bytes appended to the write-ahead log",
			},
		),
		WALSyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gravelkv_wal_sync_duration_seconds",
				Help:    "Duration of durable WAL syncs in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		ReplayRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gravelkv_replay_records_total",
				Help: "Records read during WAL replay by outcome",
			},
			[]string{"outcome"},
		),
		ReplayStopsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gravelkv_replay_stops_total",
				Help: "WAL replays by the reason they stopped",
			},
			[]string{"reason"},
		),
		MemtableEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gravelkv_memtable_entries",
				Help: "Number of live entries in the memtable",
			},
		),
		SSTableBlocksWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gravelkv_sstable_blocks_written_total",
				Help: "Data blocks flushed by table builders",
			},
		),
		SSTableBytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gravelkv_sstable_bytes_written_total",
				Help: "Bytes written to table files",
			},
		),
	}
}

// RecordOperation counts one store operation and observes its latency.
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWALAppend counts bytes made durable in the log.
func (m *Metrics) RecordWALAppend(n int) {
	if m == nil {
		return
	}
	m.WALBytesWritten.Add(float64(n))
}

// RecordWALSync observes one durable sync.
func (m *Metrics) RecordWALSync(duration time.Duration) {
	if m == nil {
		return
	}
	m.WALSyncDuration.Observe(duration.Seconds())
}

// RecordReplayRecord counts one replayed record by outcome.
func (m *Metrics) RecordReplayRecord(outcome string) {
	if m == nil {
		return
	}
	m.ReplayRecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordReplayStop counts a finished replay by its stop reason.
func (m *Metrics) RecordReplayStop(reason string) {
	if m == nil {
		return
	}
	m.ReplayStopsTotal.WithLabelValues(reason).Inc()
}

// SetMemtableEntries publishes the current memtable size.
func (m *Metrics) SetMemtableEntries(n int) {
	if m == nil {
		return
	}
	m.MemtableEntries.Set(float64(n))
}

// RecordBlockWritten counts one flushed table block of n bytes.
func (m *Metrics) RecordBlockWritten(n int) {
	if m == nil {
		return
	}
	m.SSTableBlocksWritten.Inc()
	m.SSTableBytesWritten.Add(float64(n))
}

// RecordTableBytes counts table bytes that are not data blocks (index, footer).
func (m *Metrics) RecordTableBytes(n int) {
	if m == nil {
		return
	}
	m.SSTableBytesWritten.Add(float64(n))
}
