package quantgo

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/quantgo/collective"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	communicator     collective.Communicator
	categorical      *roaring.Bitmap
	parallelism      int
}

// Option configures container construction.
type Option func(*options)

// WithLogger configures structured logging. If nil is passed, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures operational metrics collection.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithCommunicator injects the distributed collective used by AllReduce.
// Without it the container behaves as a single-worker run and AllReduce is a
// no-op.
func WithCommunicator(c collective.Communicator) Option {
	return func(o *options) {
		if c == nil {
			c = collective.SingleWorker{}
		}
		o.communicator = c
	}
}

// WithCategoricalColumns marks the given column indices as categorical.
// Categorical columns emit one cut per distinct observed value instead of
// rank-spaced cuts. The bitmap is cloned; later mutation by the caller has no
// effect on the container.
func WithCategoricalColumns(bm *roaring.Bitmap) Option {
	return func(o *options) {
		if bm == nil {
			return
		}
		o.categorical = bm.Clone()
	}
}

// WithParallelism bounds the number of columns processed concurrently by the
// bulk operations. Values below 1 select GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}
