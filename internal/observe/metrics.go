// Package observe holds the OpenTelemetry instruments for the dictation
// pipeline and the Prometheus bridge that exposes them.
//
// A nil *Metrics is valid and records nothing, so pipeline packages can be
// used without telemetry.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/chaz8081/wisprwave"

// Decode phases.
const (
	PhaseStream = "stream"
	PhaseFinal  = "final"
	PhaseLegacy = "legacy"
)

// Metrics holds the instruments. Safe for concurrent use.
type Metrics struct {
	DecodeDuration metric.Float64Histogram
	Decodes        metric.Int64Counter
	Injections     metric.Int64Counter
	Sessions       metric.Int64Counter
	ConfirmedWords metric.Int64Counter
}

// Bucket boundaries in seconds, sized for whisper decodes on a laptop.
var decodeBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecodeDuration, err = m.Float64Histogram("wisprwave.decode.duration",
		metric.WithDescription("Latency of a single transcription engine call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(decodeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Decodes, err = m.Int64Counter("wisprwave.decodes",
		metric.WithDescription("Engine calls by phase and status."),
	); err != nil {
		return nil, err
	}
	if met.Injections, err = m.Int64Counter("wisprwave.injections",
		metric.WithDescription("Injection jobs by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("wisprwave.sessions",
		metric.WithDescription("Finished dictation sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ConfirmedWords, err = m.Int64Counter("wisprwave.confirmed.words",
		metric.WithDescription("Words moved from pending to confirmed text while streaming."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordDecode records one engine call.
func (m *Metrics) RecordDecode(ctx context.Context, phase string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("status", status(err)),
	)
	m.DecodeDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.Decodes.Add(ctx, 1, attrs)
}

// RecordInjection records one finished injection job.
func (m *Metrics) RecordInjection(ctx context.Context, kind string, err error) {
	if m == nil {
		return
	}
	m.Injections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status(err)),
	))
}

// RecordSession records a finished session.
func (m *Metrics) RecordSession(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordConfirmed counts newly confirmed words.
func (m *Metrics) RecordConfirmed(ctx context.Context, words int) {
	if m == nil || words <= 0 {
		return
	}
	m.ConfirmedWords.Add(ctx, int64(words))
}
