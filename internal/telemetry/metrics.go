// Package telemetry exposes race metrics through the global OpenTelemetry
// meter provider. Without a configured provider every instrument is a no-op.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dttson/drifting-car/internal/telemetry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the race instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	started  metric.Int64Counter
	ticks    metric.Int64Counter
	finishes metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates the instruments on the global meter.
func New() (*Metrics, error) {
	m := meter()
	out := &Metrics{}

	var err error
	out.started, err = m.Int64Counter(
		"race.started",
		metric.WithDescription("Races that left the countdown"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}

	out.ticks, err = m.Int64Counter(
		"race.ticks",
		metric.WithDescription("Fixed physics steps simulated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.finishes, err = m.Int64Counter(
		"race.finishes",
		metric.WithDescription("Cars recorded in the results ledger"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating finishes counter: %w", err)
	}

	out.duration, err = m.Float64Histogram(
		"race.duration",
		metric.WithDescription("Finish time of recorded cars"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return out, nil
}

// RaceStarted counts a race entering Racing.
func (m *Metrics) RaceStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.started.Add(ctx, 1)
}

// Ticks counts simulated fixed steps.
func (m *Metrics) Ticks(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticks.Add(ctx, int64(n))
}

// CarFinished records one ledger entry. Backfilled entries carry no duration
// and only count towards finishes.
func (m *Metrics) CarFinished(ctx context.Context, player bool, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("player", player))
	m.finishes.Add(ctx, 1, attrs)
	if seconds > 0 {
		m.duration.Record(ctx, seconds, attrs)
	}
}
