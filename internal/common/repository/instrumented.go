package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.railyard.dev/internal/rop"
)

var (
	// dbOperationDuration tracks the duration of store operations
	dbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "railyard",
			Subsystem: "db",
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"entity", "operation"},
	)

	// dbOperationTotal counts total store operations
	dbOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railyard",
			Subsystem: "db",
			Name:      "operations_total",
			Help:      "Total store operations",
		},
		[]string{"entity", "operation", "result"},
	)

	// dbOperationErrors counts failed operations by error code
	dbOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railyard",
			Subsystem: "db",
			Name:      "operation_errors_total",
			Help:      "Store operation failures by error code",
		},
		[]string{"entity", "operation", "error_code"},
	)
)

// SlowQueryThreshold defines when an operation is considered slow
const SlowQueryThreshold = 100 * time.Millisecond

// Instrument wraps a raw store call (save, begin, commit, rollback) with
// metrics and logging. Failures are labelled by the repository sentinel the
// store translated them to, so driver faults show up as not_found,
// duplicate_key and so on before they are folded into a Result.
func Instrument[T any](
	ctx context.Context,
	entity string,
	operation string,
	fn func() (T, error),
) (T, error) {
	start := time.Now()

	result, err := fn()

	duration := time.Since(start)
	dbOperationDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())

	if err != nil {
		class := classifyError(err)
		dbOperationTotal.WithLabelValues(entity, operation, "error").Inc()
		dbOperationErrors.WithLabelValues(entity, operation, class).Inc()

		level := slog.LevelError
		if class != "internal" {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Store operation failed",
			"entity", entity,
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return result, err
	}

	dbOperationTotal.WithLabelValues(entity, operation, "success").Inc()
	logIfSlow(ctx, entity, operation, duration)
	return result, err
}

// InstrumentVoid wraps a store operation that returns only an error.
func InstrumentVoid(
	ctx context.Context,
	entity string,
	operation string,
	fn func() error,
) error {
	_, err := Instrument(ctx, entity, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// instrumentResult wraps a command or query that already speaks Result.
// Failures are counted by their first error code.
func instrumentResult[T any](
	ctx context.Context,
	logger *slog.Logger,
	entity string,
	operation string,
	fn func() rop.Result[T],
) rop.Result[T] {
	start := time.Now()

	result := fn()

	duration := time.Since(start)
	dbOperationDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())

	if first, failed := result.FirstError(); failed {
		dbOperationTotal.WithLabelValues(entity, operation, "failure").Inc()
		dbOperationErrors.WithLabelValues(entity, operation, first.Code).Inc()

		level := slog.LevelWarn
		if first.Kind == rop.KindInternal {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "Repository operation failed",
			"entity", entity,
			"operation", operation,
			"status", result.StatusCode(),
			"duration_ms", duration.Milliseconds(),
			"error", first.String())
		return result
	}

	dbOperationTotal.WithLabelValues(entity, operation, "success").Inc()
	logIfSlow(ctx, entity, operation, duration)
	return result
}

func logIfSlow(ctx context.Context, entity, operation string, duration time.Duration) {
	if duration > SlowQueryThreshold {
		slog.WarnContext(ctx, "Slow store operation",
			"entity", entity,
			"operation", operation,
			"duration_ms", duration.Milliseconds())
	}
}

// classifyError returns a label-safe error type for metrics. Transaction
// misuse is reported separately from driver faults.
func classifyError(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	if errors.Is(err, ErrDuplicateKey) {
		return "duplicate_key"
	}
	if errors.Is(err, ErrOptimisticLock) {
		return "optimistic_lock"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, ErrNoTransaction) || errors.Is(err, ErrTransactionActive) {
		return "transaction_state"
	}
	return "internal"
}
