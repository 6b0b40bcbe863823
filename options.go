package tensorgo

import (
	"runtime"

	"github.com/hupe1980/tensorgo/internal/fs"
)

type options struct {
	logger           *Logger
	fs               fs.FileSystem
	metricsCollector MetricsCollector
}

// Option configures store construction and open behavior.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		fs:               fs.Default,
		metricsCollector: NoopMetricsCollector{},
	}
}

// WithLogger configures structured logging for store operations.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithFS overrides the file system used for every file operation.
// Intended for tests (fault injection); the default is the local file system.
func WithFS(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metricsCollector = collector
	}
}

const (
	// DefaultBatchSize is the population batch size when none is configured.
	DefaultBatchSize = 64
	// DefaultWorkers is the population worker count when none is configured.
	DefaultWorkers = 4
)

type populateOptions struct {
	batchSize int
	workers   int
}

// PopulateOption configures a population run.
type PopulateOption func(*populateOptions)

func defaultPopulateOptions() populateOptions {
	return populateOptions{
		batchSize: DefaultBatchSize,
		workers:   DefaultWorkers,
	}
}

// WithBatchSize sets how many records each population task carries.
// Values below 1 fall back to the default.
func WithBatchSize(n int) PopulateOption {
	return func(o *populateOptions) {
		if n >= 1 {
			o.batchSize = n
		}
	}
}

// WithWorkers sets the number of parallel population workers.
// Values below 1 use GOMAXPROCS.
func WithWorkers(n int) PopulateOption {
	return func(o *populateOptions) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}
