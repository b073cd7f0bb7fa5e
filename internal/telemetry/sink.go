// Package telemetry records sync-pass and session-lifecycle activity as
// OpenTelemetry metrics, spans, and log events.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	otelsetup "taskdesk/core/internal/telemetry/otel"
)

// Sink is the telemetry surface the sync engine and session registry emit to.
// A nil *Sink is valid and drops everything, so wiring telemetry stays optional.
type Sink struct {
	tracer trace.Tracer
	logger otellog.Logger

	syncPasses    metric.Int64Counter
	recordsSynced metric.Int64Counter
	recordErrors  metric.Int64Counter
	recordsPulled metric.Int64Counter
	syncDuration  metric.Float64Histogram
}

// NewSink builds a Sink on the given providers.
func NewSink(p *otelsetup.Providers) (*Sink, error) {
	meter := p.MeterProvider.Meter("taskdesk.core")
	s := &Sink{
		tracer: p.TracerProvider.Tracer("taskdesk.core"),
		logger: p.LoggerProvider.Logger("taskdesk.core"),
	}
	var err error
	if s.syncPasses, err = meter.Int64Counter("sync.passes",
		metric.WithDescription("Completed sync passes by operation and outcome")); err != nil {
		return nil, err
	}
	if s.recordsSynced, err = meter.Int64Counter("sync.records_synced",
		metric.WithDescription("Records confirmed synced by push passes")); err != nil {
		return nil, err
	}
	if s.recordErrors, err = meter.Int64Counter("sync.record_errors",
		metric.WithDescription("Per-record failures isolated during push passes")); err != nil {
		return nil, err
	}
	if s.recordsPulled, err = meter.Int64Counter("sync.records_pulled",
		metric.WithDescription("Records created or overwritten locally by pull passes")); err != nil {
		return nil, err
	}
	if s.syncDuration, err = meter.Float64Histogram("sync.pass_duration_seconds",
		metric.WithDescription("Wall time of sync passes")); err != nil {
		return nil, err
	}
	return s, nil
}

// Start opens a span for a sync operation. Nil-safe.
func (s *Sink) Start(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

// SyncPass records one completed (or failed) sync pass.
func (s *Sink) SyncPass(ctx context.Context, op string, dur time.Duration, synced, errored, pulled int, err error) {
	if s == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	s.syncPasses.Add(ctx, 1, attrs)
	s.syncDuration.Record(ctx, dur.Seconds(), attrs)
	if synced > 0 {
		s.recordsSynced.Add(ctx, int64(synced), attrs)
	}
	if errored > 0 {
		s.recordErrors.Add(ctx, int64(errored), attrs)
	}
	if pulled > 0 {
		s.recordsPulled.Add(ctx, int64(pulled), attrs)
	}
}

// SessionEvent emits a session lifecycle event (created, reused, evicted,
// ended, invalid) as an OTel log record. Best-effort.
func (s *Sink) SessionEvent(ctx context.Context, event, userID, deviceID, sessionID string) {
	if s == nil {
		return
	}
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now())
	rec.SetBody(otellog.StringValue("session." + event))
	rec.AddAttributes(otellog.String("event_type", "session."+event))
	if userID != "" {
		rec.AddAttributes(otellog.String("user_id", userID))
	}
	if deviceID != "" {
		rec.AddAttributes(otellog.String("device_id", deviceID))
	}
	if sessionID != "" {
		rec.AddAttributes(otellog.String("session_id", sessionID))
	}
	s.logger.Emit(ctx, rec)
}
