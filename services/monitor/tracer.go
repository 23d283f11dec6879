package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanSink receives finished spans. Export failures are the sink's problem;
// the registry never blocks or drops open spans because of a sink.
type SpanSink interface {
	ExportSpan(ctx context.Context, span *TraceSpan)
}

// NopSpanSink discards finished spans.
type NopSpanSink struct{}

func (NopSpanSink) ExportSpan(ctx context.Context, span *TraceSpan) {}

// Tracer is the in-process trace registry. Spans are registered under their
// trace ID at start and finalized exactly once; traces are purged
// all-or-nothing by retention cleanup.
type Tracer struct {
	mu     sync.Mutex
	traces map[string][]*TraceSpan
	sink   SpanSink
	logger *slog.Logger
	now    func() time.Time
}

// NewTracer creates a trace registry that forwards finished spans to sink.
func NewTracer(sink SpanSink, logger *slog.Logger) *Tracer {
	if sink == nil {
		sink = NopSpanSink{}
	}
	return &Tracer{
		traces: make(map[string][]*TraceSpan),
		sink:   sink,
		logger: logger.With("component", "tracer"),
		now:    time.Now,
	}
}

// WithClock overrides the clock for testing.
func (t *Tracer) WithClock(clock func() time.Time) *Tracer {
	t.now = clock
	return t
}

// StartTrace starts a new root span and registers it under a fresh trace ID.
func (t *Tracer) StartTrace(operation, serviceName string) *TraceSpan {
	span := &TraceSpan{
		TraceID:     uuid.New().String(),
		SpanID:      uuid.New().String(),
		Operation:   operation,
		ServiceName: serviceName,
		StartTime:   t.now(),
		Status:      SpanStatusOK,
		Tags:        make(map[string]string),
	}

	t.mu.Lock()
	t.traces[span.TraceID] = append(t.traces[span.TraceID], span)
	t.mu.Unlock()

	return span
}

// StartChildSpan starts a span under parent, sharing its trace ID. An empty
// serviceName inherits the parent's. A nil parent starts a new root trace.
func (t *Tracer) StartChildSpan(parent *TraceSpan, operation, serviceName string) *TraceSpan {
	if parent == nil {
		return t.StartTrace(operation, serviceName)
	}
	if serviceName == "" {
		serviceName = parent.ServiceName
	}

	span := &TraceSpan{
		TraceID:      parent.TraceID,
		SpanID:       uuid.New().String(),
		ParentSpanID: parent.SpanID,
		Operation:    operation,
		ServiceName:  serviceName,
		StartTime:    t.now(),
		Status:       SpanStatusOK,
		Tags:         make(map[string]string),
	}

	t.mu.Lock()
	t.traces[span.TraceID] = append(t.traces[span.TraceID], span)
	t.mu.Unlock()

	return span
}

// AddSpanTags merges tags into an open span. Finished spans are not touched.
func (t *Tracer) AddSpanTags(span *TraceSpan, tags map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if span.finished {
		return
	}
	for k, v := range tags {
		span.Tags[k] = v
	}
}

// AddSpanLog appends a timestamped log entry to an open span. Finished spans
// are not touched.
func (t *Tracer) AddSpanLog(span *TraceSpan, fields map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if span.finished {
		return
	}
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	span.Logs = append(span.Logs, SpanLog{Timestamp: t.now(), Fields: copied})
}

// FinishSpan finalizes a span: stamps the end time, computes the duration,
// and forwards a snapshot to the sink. A non-nil err marks the span failed.
// Finishing a span twice is a no-op.
func (t *Tracer) FinishSpan(span *TraceSpan, err error) {
	t.mu.Lock()

	if span.finished {
		t.mu.Unlock()
		return
	}

	end := t.now()
	span.EndTime = &end
	span.Duration = end.Sub(span.StartTime)

	if err != nil {
		span.Status = SpanStatusError
		span.ErrorMessage = err.Error()
		span.Tags["error"] = "true"
		span.Logs = append(span.Logs, SpanLog{
			Timestamp: end,
			Fields:    map[string]string{"event": "error", "message": err.Error()},
		})
	}

	span.finished = true
	snapshot := copySpan(span)
	t.mu.Unlock()

	t.sink.ExportSpan(context.Background(), snapshot)
}

// Trace returns copies of all spans recorded under a trace ID.
func (t *Tracer) Trace(traceID string) []*TraceSpan {
	t.mu.Lock()
	defer t.mu.Unlock()

	spans := t.traces[traceID]
	out := make([]*TraceSpan, 0, len(spans))
	for _, s := range spans {
		out = append(out, copySpan(s))
	}
	return out
}

// TraceCount returns the number of traces currently registered.
func (t *Tracer) TraceCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.traces)
}

// SpanCount returns the number of spans across all registered traces.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, spans := range t.traces {
		n += len(spans)
	}
	return n
}

// PurgeTracesBefore removes traces where every span finished before the
// cutoff. A trace with any open or newer span is kept whole; traces are
// never purged span by span. Returns the number of traces removed.
func (t *Tracer) PurgeTracesBefore(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	purged := 0
	for traceID, spans := range t.traces {
		expired := true
		for _, s := range spans {
			if !s.finished || !s.EndTime.Before(cutoff) {
				expired = false
				break
			}
		}
		if expired {
			delete(t.traces, traceID)
			purged++
		}
	}

	if purged > 0 {
		t.logger.Debug("purged expired traces", "count", purged)
	}
	return purged
}

func copySpan(in *TraceSpan) *TraceSpan {
	out := *in
	out.Tags = make(map[string]string, len(in.Tags))
	for k, v := range in.Tags {
		out.Tags[k] = v
	}
	out.Logs = make([]SpanLog, len(in.Logs))
	copy(out.Logs, in.Logs)
	if in.EndTime != nil {
		end := *in.EndTime
		out.EndTime = &end
	}
	return &out
}

// OTelSpanSink re-emits finished registry spans through an OpenTelemetry
// tracer so they reach the configured OTLP exporter. Registry IDs travel as
// attributes; OTel assigns its own span identity.
type OTelSpanSink struct {
	tracer trace.Tracer
}

// NewOTelSpanSink creates a sink backed by an OpenTelemetry tracer.
func NewOTelSpanSink(tracer trace.Tracer) *OTelSpanSink {
	return &OTelSpanSink{tracer: tracer}
}

func (s *OTelSpanSink) ExportSpan(ctx context.Context, span *TraceSpan) {
	if span.EndTime == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("vigil.trace_id", span.TraceID),
		attribute.String("vigil.span_id", span.SpanID),
		attribute.String("vigil.parent_span_id", span.ParentSpanID),
		attribute.String("service.name", span.ServiceName),
	}
	for k, v := range span.Tags {
		attrs = append(attrs, attribute.String("tag."+k, v))
	}

	_, ospan := s.tracer.Start(ctx, span.Operation,
		trace.WithTimestamp(span.StartTime),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	switch span.Status {
	case SpanStatusError:
		ospan.SetStatus(codes.Error, span.ErrorMessage)
	case SpanStatusTimeout:
		ospan.SetStatus(codes.Error, "timeout")
	default:
		ospan.SetStatus(codes.Ok, "")
	}

	ospan.End(trace.WithTimestamp(*span.EndTime))
}

var (
	_ SpanSink = (NopSpanSink{})
	_ SpanSink = (*OTelSpanSink)(nil)
)
