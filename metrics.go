package tensorgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordGet is called after each batched read.
	// records is the number of indices requested, duration the time taken,
	// err is nil if successful.
	RecordGet(records int, duration time.Duration, err error)

	// RecordSet is called after each direct batch write.
	RecordSet(records int, duration time.Duration, err error)

	// RecordPopulateBatch is called after each population batch lands,
	// including the upstream fetch time.
	RecordPopulateBatch(records int, duration time.Duration, err error)

	// RecordSeal is called after a seal attempt (flush of every field plus
	// the manifest commit).
	RecordSeal(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordGet(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordSet(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordPopulateBatch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSeal(time.Duration, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	GetCount           atomic.Int64
	GetRecords         atomic.Int64
	GetErrors          atomic.Int64
	GetTotalNanos      atomic.Int64
	SetCount           atomic.Int64
	SetRecords         atomic.Int64
	SetErrors          atomic.Int64
	PopulateBatches    atomic.Int64
	PopulateRecords    atomic.Int64
	PopulateErrors     atomic.Int64
	PopulateTotalNanos atomic.Int64
	SealCount          atomic.Int64
	SealErrors         atomic.Int64
}

func (m *BasicMetricsCollector) RecordGet(records int, duration time.Duration, err error) {
	m.GetCount.Add(1)
	m.GetRecords.Add(int64(records))
	m.GetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.GetErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordSet(records int, duration time.Duration, err error) {
	m.SetCount.Add(1)
	m.SetRecords.Add(int64(records))
	if err != nil {
		m.SetErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordPopulateBatch(records int, duration time.Duration, err error) {
	m.PopulateBatches.Add(1)
	m.PopulateRecords.Add(int64(records))
	m.PopulateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.PopulateErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordSeal(duration time.Duration, err error) {
	m.SealCount.Add(1)
	if err != nil {
		m.SealErrors.Add(1)
	}
}
