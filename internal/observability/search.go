package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SearchMetrics records similarity search latency by outcome status.
type SearchMetrics interface {
	RecordSearch(ctx context.Context, duration time.Duration, status string)
}

type searchMetrics struct {
	duration metric.Float64Histogram
}

// NewSearchMetrics creates SearchMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewSearchMetrics(meter metric.Meter) (SearchMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	duration, err := meter.Float64Histogram(
		MetricNameSearchLatency,
		metric.WithDescription("Similarity search duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	return &searchMetrics{duration: duration}, nil
}

func (s *searchMetrics) RecordSearch(ctx context.Context, duration time.Duration, status string) {
	if !AllowedSearchStatuses[status] {
		status = "other"
	}

	s.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}
