package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RelayMetrics records order relay outcomes
type RelayMetrics struct {
	submissions metric.Int64Counter
	duplicates  metric.Int64Counter
	dispatch    metric.Float64Histogram
}

// NewRelayMetrics creates the relay instruments on meter
func NewRelayMetrics(meter metric.Meter) (*RelayMetrics, error) {
	submissions, err := meter.Int64Counter("relay_submissions_total",
		metric.WithDescription("Order submissions by outcome and final stage"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}
	duplicates, err := meter.Int64Counter("relay_duplicate_submissions_total",
		metric.WithDescription("Submissions acknowledged without sending because their key was already relayed"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}
	dispatch, err := meter.Float64Histogram("relay_dispatch_duration_seconds",
		metric.WithDescription("Time spent handing a message to the gateway"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &RelayMetrics{submissions: submissions, duplicates: duplicates, dispatch: dispatch}, nil
}

// RecordOutcome counts one submission. stage is where processing ended.
func (m *RelayMetrics) RecordOutcome(ctx context.Context, outcome, stage string) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stage", stage),
	))
}

// RecordDuplicate counts a suppressed duplicate
func (m *RelayMetrics) RecordDuplicate(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicates.Add(ctx, 1)
}

// RecordDispatch records gateway latency
func (m *RelayMetrics) RecordDispatch(ctx context.Context, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.dispatch.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}
