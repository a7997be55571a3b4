package engine

import (
	"io"
	"log/slog"
	"math/rand"

	"github.com/MikhailWahib/gravelkv/internal/diskmanager"
	"github.com/MikhailWahib/gravelkv/internal/metrics"
	"go.opentelemetry.io/otel/trace"
)

type options struct {
	logger    *slog.Logger
	logOutput io.Writer
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	dm        diskmanager.DiskManager
	rng       *rand.Rand
}

// Option customizes an Engine.
type Option func(*options)

// WithLogger sets the logger. Without it a logger is built from
// config.Logging, writing to stderr or the WithLogOutput writer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDiskManager replaces the filesystem layer.
func WithDiskManager(dm diskmanager.DiskManager) Option {
	return func(o *options) { o.dm = dm }
}

// WithRand sets the source for memtable node heights, overriding the configured seed.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithLogOutput sets where the config-built logger writes. Ignored with WithLogger.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithTracer sets the tracer used for table writes. The default is a noop tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}
