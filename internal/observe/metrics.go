// Package observe provides observability primitives for interloq:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the standard /metrics endpoint set up by [InitProvider]. Tests should use
// [NewMetrics] with a private [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all interloq metrics.
const meterName = "github.com/interloq/interloq"

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CycleDuration tracks one full recording cycle from arm to played
	// translation.
	CycleDuration metric.Float64Histogram

	// TranslationDuration tracks translation backend latency.
	TranslationDuration metric.Float64Histogram

	// PlaybackDuration tracks playback latency of synthesized speech.
	PlaybackDuration metric.Float64Histogram

	// RecordingSeconds tracks how much audio each captured utterance held.
	RecordingSeconds metric.Float64Histogram

	// ValidationRejects counts recordings the speech classifier discarded.
	// Use with attribute.String("reason", ...).
	ValidationRejects metric.Int64Counter

	// TranslationRetries counts utterances resubmitted untrimmed after an
	// audio-quality rejection.
	TranslationRetries metric.Int64Counter

	// CaptureErrors counts microphone capture failures.
	CaptureErrors metric.Int64Counter

	// TrimApplied counts recordings that were shortened before upload.
	TrimApplied metric.Int64Counter

	// ActiveSessions tracks the number of live conversation sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CycleDuration, err = m.Float64Histogram("interloq.cycle.duration",
		metric.WithDescription("Duration of one recording cycle, arm to played translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("interloq.translation.duration",
		metric.WithDescription("Latency of the translation backend."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("interloq.playback.duration",
		metric.WithDescription("Latency of translated speech playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecordingSeconds, err = m.Float64Histogram("interloq.recording.seconds",
		metric.WithDescription("Length of audio in each captured utterance."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.ValidationRejects, err = m.Int64Counter("interloq.validation.rejects",
		metric.WithDescription("Recordings discarded by the speech classifier, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TranslationRetries, err = m.Int64Counter("interloq.translation.retries",
		metric.WithDescription("Utterances resubmitted untrimmed after an audio-quality rejection."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("interloq.capture.errors",
		metric.WithDescription("Microphone capture failures."),
	); err != nil {
		return nil, err
	}
	if met.TrimApplied, err = m.Int64Counter("interloq.trim.applied",
		metric.WithDescription("Recordings shortened by the silence trimmer before upload."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("interloq.active_sessions",
		metric.WithDescription("Number of live conversation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordValidationReject increments the classifier reject counter for one
// rejection reason.
func (m *Metrics) RecordValidationReject(ctx context.Context, reason string) {
	m.ValidationRejects.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
