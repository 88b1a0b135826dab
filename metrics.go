package experience

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordDiscover is called after each directory scan.
	RecordDiscover(chunks, examples int, duration time.Duration, err error)

	// RecordGet is called after each ChunkSet.Get.
	RecordGet(duration time.Duration, err error)

	// RecordSelect is called after each subset selection.
	RecordSelect(n int, duration time.Duration, err error)

	// RecordMirror is called for every object copied from a blob store.
	RecordMirror(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDiscover(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordGet(time.Duration, error)                {}
func (NoopMetricsCollector) RecordSelect(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordMirror(int64, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	DiscoverCount    atomic.Int64
	DiscoverErrors   atomic.Int64
	ChunksDiscovered atomic.Int64
	ExamplesFound    atomic.Int64
	GetCount         atomic.Int64
	GetErrors        atomic.Int64
	GetTotalNanos    atomic.Int64
	SelectCount      atomic.Int64
	SelectErrors     atomic.Int64
	SelectedExamples atomic.Int64
	MirrorObjects    atomic.Int64
	MirrorErrors     atomic.Int64
	MirrorBytes      atomic.Int64
}

// RecordDiscover implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDiscover(chunks, examples int, _ time.Duration, err error) {
	b.DiscoverCount.Add(1)
	if err != nil {
		b.DiscoverErrors.Add(1)
		return
	}
	b.ChunksDiscovered.Add(int64(chunks))
	b.ExamplesFound.Add(int64(examples))
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GetErrors.Add(1)
	}
}

// RecordSelect implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSelect(n int, _ time.Duration, err error) {
	b.SelectCount.Add(1)
	if err != nil {
		b.SelectErrors.Add(1)
		return
	}
	b.SelectedExamples.Add(int64(n))
}

// RecordMirror implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMirror(bytes int64, _ time.Duration, err error) {
	b.MirrorObjects.Add(1)
	if err != nil {
		b.MirrorErrors.Add(1)
		return
	}
	b.MirrorBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		DiscoverCount:    b.DiscoverCount.Load(),
		DiscoverErrors:   b.DiscoverErrors.Load(),
		ChunksDiscovered: b.ChunksDiscovered.Load(),
		ExamplesFound:    b.ExamplesFound.Load(),
		GetCount:         b.GetCount.Load(),
		GetErrors:        b.GetErrors.Load(),
		SelectCount:      b.SelectCount.Load(),
		SelectErrors:     b.SelectErrors.Load(),
		SelectedExamples: b.SelectedExamples.Load(),
		MirrorObjects:    b.MirrorObjects.Load(),
		MirrorErrors:     b.MirrorErrors.Load(),
		MirrorBytes:      b.MirrorBytes.Load(),
	}
	if s.GetCount > 0 {
		s.GetAvgNanos = b.GetTotalNanos.Load() / s.GetCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	DiscoverCount    int64
	DiscoverErrors   int64
	ChunksDiscovered int64
	ExamplesFound    int64
	GetCount         int64
	GetErrors        int64
	GetAvgNanos      int64
	SelectCount      int64
	SelectErrors     int64
	SelectedExamples int64
	MirrorObjects    int64
	MirrorErrors     int64
	MirrorBytes      int64
}
