package quantgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordPush is called after each ingestion.
	// samples is the raw sample count, duration the total time taken,
	// err is nil if successful.
	RecordPush(samples int, duration time.Duration, err error)

	// RecordPrune is called after each prune.
	RecordPrune(before, after int, duration time.Duration)

	// RecordMerge is called after each merge.
	RecordMerge(duration time.Duration, err error)

	// RecordUnique is called after each deduplication.
	// removed is the number of entries collapsed away.
	RecordUnique(removed int, duration time.Duration)

	// RecordAllReduce is called after each distributed merge round.
	// payloadBytes is the size of the local flattened payload.
	RecordAllReduce(workers, payloadBytes int, duration time.Duration, err error)

	// RecordMakeCuts is called after each cut emission.
	RecordMakeCuts(totalBins int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPush(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordPrune(int, int, time.Duration)            {}
func (NoopMetricsCollector) RecordMerge(time.Duration, error)               {}
func (NoopMetricsCollector) RecordUnique(int, time.Duration)                {}
func (NoopMetricsCollector) RecordAllReduce(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordMakeCuts(int, time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PushCount        atomic.Int64
	PushSamples      atomic.Int64
	PushErrors       atomic.Int64
	PushTotalNanos   atomic.Int64
	PruneCount       atomic.Int64
	PruneRemoved     atomic.Int64
	MergeCount       atomic.Int64
	MergeErrors      atomic.Int64
	UniqueCount      atomic.Int64
	UniqueRemoved    atomic.Int64
	AllReduceCount   atomic.Int64
	AllReduceErrors  atomic.Int64
	AllReduceBytes   atomic.Int64
	AllReduceNanos   atomic.Int64
	MakeCutsCount    atomic.Int64
	MakeCutsErrors   atomic.Int64
	MakeCutsBinsLast atomic.Int64
}

// RecordPush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPush(samples int, duration time.Duration, err error) {
	b.PushCount.Add(1)
	b.PushSamples.Add(int64(samples))
	b.PushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PushErrors.Add(1)
	}
}

// RecordPrune implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrune(before, after int, _ time.Duration) {
	b.PruneCount.Add(1)
	b.PruneRemoved.Add(int64(before - after))
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(_ time.Duration, err error) {
	b.MergeCount.Add(1)
	if err != nil {
		b.MergeErrors.Add(1)
	}
}

// RecordUnique implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnique(removed int, _ time.Duration) {
	b.UniqueCount.Add(1)
	b.UniqueRemoved.Add(int64(removed))
}

// RecordAllReduce implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllReduce(_, payloadBytes int, duration time.Duration, err error) {
	b.AllReduceCount.Add(1)
	b.AllReduceBytes.Add(int64(payloadBytes))
	b.AllReduceNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllReduceErrors.Add(1)
	}
}

// RecordMakeCuts implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMakeCuts(totalBins int, _ time.Duration, err error) {
	b.MakeCutsCount.Add(1)
	b.MakeCutsBinsLast.Store(int64(totalBins))
	if err != nil {
		b.MakeCutsErrors.Add(1)
	}
}
