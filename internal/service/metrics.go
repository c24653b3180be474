package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/utafrali/catalogcart/pkg/errors"
	"github.com/utafrali/catalogcart/pkg/tracing"
)

var tracer = tracing.Tracer("github.com/utafrali/catalogcart/internal/service")

var (
	cartOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Total number of cart workflow operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	stockRestorationSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_stock_restoration_skipped_total",
			Help: "Cart lines removed without restoring stock because the product no longer exists",
		},
	)
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, apperrors.ErrServiceUnavail):
		return "unavailable"
	default:
		return "error"
	}
}

// observe starts a span for a cart operation. The returned func ends it and
// counts the operation under the outcome derived from err.
func observe(ctx context.Context, operation, sessionID string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "cart."+operation,
		tracing.WithAttributes(attribute.String("cart.session_id", sessionID)),
	)
	return ctx, func(err error) {
		result := outcome(err)
		cartOperations.WithLabelValues(operation, result).Inc()
		span.SetAttributes(attribute.String("cart.outcome", result))
		if err != nil && result == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
