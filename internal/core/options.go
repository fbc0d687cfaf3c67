package core

import (
	"context"
	"time"
)

// Logger is the minimal structured logging contract used by the service.
// *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time; overridable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now invokes the wrapped function.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// defaultWorkerLimit caps concurrent object-store calls within one workflow.
const defaultWorkerLimit = 8

type serviceOptions struct {
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	workers  int
	external ExternalAssetSource
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		metrics: noopMetrics{},
		workers: defaultWorkerLimit,
	}
}

// ServiceOption customises service construction.
type ServiceOption func(*serviceOptions)

// WithLogger overrides the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder observed around every operation.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithWorkerLimit caps parallel object-store calls per workflow.
func WithWorkerLimit(n int) ServiceOption {
	return func(o *serviceOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithExternalAssetSource registers a collaborator holding additional asset
// references keyed by person identity, consulted during delete discovery.
func WithExternalAssetSource(src ExternalAssetSource) ServiceOption {
	return func(o *serviceOptions) {
		o.external = src
	}
}
