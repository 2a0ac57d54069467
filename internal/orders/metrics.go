package orders

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type checkoutMetrics struct {
	outcomes metric.Int64Counter
	retries  metric.Int64Counter
	duration metric.Float64Histogram
}

func newCheckoutMetrics() (*checkoutMetrics, error) {
	meter := otel.Meter("storefront/orders")

	outcomes, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter("checkout.serialization_retries",
		metric.WithDescription("Checkout transactions re-run after a serialization failure"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("checkout.duration",
		metric.WithDescription("Wall-clock time spent in the checkout transaction"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &checkoutMetrics{outcomes: outcomes, retries: retries, duration: duration}, nil
}

// record counts one checkout. An empty kind means success.
func (m *checkoutMetrics) record(ctx context.Context, kind domain.ErrorKind, elapsed time.Duration) {
	outcome := "success"
	if kind != "" {
		outcome = string(kind)
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.outcomes.Add(ctx, 1, attrs)
	if elapsed > 0 {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
