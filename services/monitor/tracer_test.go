package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/instantcocoa/vigil/pkg/testutil"
)

// captureSink records every exported span.
type captureSink struct {
	mu    sync.Mutex
	spans []*TraceSpan
}

func (s *captureSink) ExportSpan(ctx context.Context, span *TraceSpan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, span)
}

func (s *captureSink) exported() []*TraceSpan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spans
}

func testClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func TestTracer_StartTrace(t *testing.T) {
	tracer := NewTracer(nil, testutil.DiscardLogger())

	span := tracer.StartTrace("checkout", "storefront")
	if span.TraceID == "" || span.SpanID == "" {
		t.Fatalf("StartTrace() ids = (%q, %q), want non-empty", span.TraceID, span.SpanID)
	}
	if span.ParentSpanID != "" {
		t.Errorf("root span ParentSpanID = %q, want empty", span.ParentSpanID)
	}
	if span.Status != SpanStatusOK {
		t.Errorf("span.Status = %v, want %v", span.Status, SpanStatusOK)
	}
	if span.Finished() {
		t.Error("new span reports finished")
	}
	if tracer.TraceCount() != 1 {
		t.Errorf("TraceCount() = %d, want 1", tracer.TraceCount())
	}
}

func TestTracer_ChildSpanLinkage(t *testing.T) {
	tracer := NewTracer(nil, testutil.DiscardLogger())

	root := tracer.StartTrace("checkout", "storefront")
	child := tracer.StartChildSpan(root, "charge-card", "")

	if child.TraceID != root.TraceID {
		t.Errorf("child.TraceID = %q, want %q", child.TraceID, root.TraceID)
	}
	if child.ParentSpanID != root.SpanID {
		t.Errorf("child.ParentSpanID = %q, want %q", child.ParentSpanID, root.SpanID)
	}
	if child.ServiceName != "storefront" {
		t.Errorf("child.ServiceName = %q, want inherited %q", child.ServiceName, "storefront")
	}
	if tracer.SpanCount() != 2 {
		t.Errorf("SpanCount() = %d, want 2", tracer.SpanCount())
	}

	grandchild := tracer.StartChildSpan(child, "ledger-write", "billing")
	if grandchild.TraceID != root.TraceID {
		t.Errorf("grandchild.TraceID = %q, want %q", grandchild.TraceID, root.TraceID)
	}
	if grandchild.ServiceName != "billing" {
		t.Errorf("grandchild.ServiceName = %q, want %q", grandchild.ServiceName, "billing")
	}
}

func TestTracer_ChildSpan_NilParent(t *testing.T) {
	tracer := NewTracer(nil, testutil.DiscardLogger())

	span := tracer.StartChildSpan(nil, "orphan", "svc")
	if span.ParentSpanID != "" {
		t.Errorf("span.ParentSpanID = %q, want empty", span.ParentSpanID)
	}
	if span.TraceID == "" {
		t.Error("nil parent should start a fresh trace")
	}
}

func TestTracer_FinishSpan(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tracer := NewTracer(nil, testutil.DiscardLogger()).WithClock(testClock(start, 250*time.Millisecond))

	span := tracer.StartTrace("op", "svc")
	tracer.FinishSpan(span, nil)

	if !span.Finished() {
		t.Fatal("span not finished after FinishSpan")
	}
	if span.EndTime == nil {
		t.Fatal("span.EndTime = nil after finish")
	}
	if span.Duration != 250*time.Millisecond {
		t.Errorf("span.Duration = %v, want 250ms", span.Duration)
	}
	if span.Status != SpanStatusOK {
		t.Errorf("span.Status = %v, want %v", span.Status, SpanStatusOK)
	}
}

func TestTracer_FinishSpan_Error(t *testing.T) {
	tracer := NewTracer(nil, testutil.DiscardLogger())

	span := tracer.StartTrace("op", "svc")
	tracer.FinishSpan(span, errors.New("downstream unavailable"))

	if span.Status != SpanStatusError {
		t.Errorf("span.Status = %v, want %v", span.Status, SpanStatusError)
	}
	if span.ErrorMessage != "downstream unavailable" {
		t.Errorf("span.ErrorMessage = %q, want %q", span.ErrorMessage, "downstream unavailable")
	}
	if span.Tags["error"] != "true" {
		t.Errorf("span.Tags[error] = %q, want %q", span.Tags["error"], "true")
	}
	if len(span.Logs) != 1 {
		t.Fatalf("len(span.Logs) = %d, want 1", len(span.Logs))
	}
	if span.Logs[0].Fields["message"] != "downstream unavailable" {
		t.Errorf("error log message = %q, want %q", span.Logs[0].Fields["message"], "downstream unavailable")
	}
}

func TestTracer_FinishSpan_Idempotent(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tracer := NewTracer(nil, testutil.DiscardLogger()).WithClock(testClock(start, time.Second))

	sink := &captureSink{}
	tracer.sink = sink

	span := tracer.StartTrace("op", "svc")
	tracer.FinishSpan(span, nil)
	duration := span.Duration

	tracer.FinishSpan(span, errors.New("late error"))

	if span.Duration != duration {
		t.Errorf("second finish changed duration: %v -> %v", duration, span.Duration)
	}
	if span.Status != SpanStatusOK {
		t.Errorf("second finish changed status to %v", span.Status)
	}
	if len(sink.exported()) != 1 {
		t.Errorf("sink received %d spans, want 1", len(sink.exported()))
	}
}

func TestTracer_FinishedSpanImmutable(t *testing.T) {
	tracer := NewTracer(nil, testutil.DiscardLogger())

	span := tracer.StartTrace("op", "svc")
	tracer.FinishSpan(span, nil)

	tracer.AddSpanTags(span, map[string]string{"late": "tag"})
	tracer.AddSpanLog(span, map[string]string{"late": "log"})

	if _, ok := span.Tags["late"]; ok {
		t.Error("AddSpanTags mutated a finished span")
	}
	if len(span.Logs) != 0 {
		t.Errorf("AddSpanLog mutated a finished span: %d logs", len(span.Logs))
	}
}

func TestTracer_SinkReceivesSnapshot(t *testing.T) {
	sink := &captureSink{}
	tracer := NewTracer(sink, testutil.DiscardLogger())

	span := tracer.StartTrace("op", "svc")
	tracer.AddSpanTags(span, map[string]string{"region": "eu"})
	tracer.FinishSpan(span, nil)

	exported := sink.exported()
	if len(exported) != 1 {
		t.Fatalf("sink received %d spans, want 1", len(exported))
	}

	// The snapshot must not alias the live span's maps.
	exported[0].Tags["region"] = "us"
	if span.Tags["region"] != "eu" {
		t.Error("sink snapshot aliases the live span tags")
	}
}

func TestTracer_Trace_ReturnsCopies(t *testing.T) {
	tracer := NewTracer(nil, testutil.DiscardLogger())

	span := tracer.StartTrace("op", "svc")
	tracer.AddSpanTags(span, map[string]string{"k": "v"})

	spans := tracer.Trace(span.TraceID)
	if len(spans) != 1 {
		t.Fatalf("Trace() returned %d spans, want 1", len(spans))
	}
	spans[0].Tags["k"] = "mutated"

	again := tracer.Trace(span.TraceID)
	if again[0].Tags["k"] != "v" {
		t.Error("Trace() result aliases registry state")
	}
}

func TestTracer_PurgeTracesBefore(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tracer := NewTracer(nil, testutil.DiscardLogger()).WithClock(testClock(start, time.Minute))

	// Trace 1: fully finished early.
	old := tracer.StartTrace("old-op", "svc")
	tracer.FinishSpan(old, nil)

	// Trace 2: root finished, child still open.
	mixed := tracer.StartTrace("mixed-op", "svc")
	openChild := tracer.StartChildSpan(mixed, "still-running", "")
	tracer.FinishSpan(mixed, nil)

	cutoff := start.Add(time.Hour)
	purged := tracer.PurgeTracesBefore(cutoff)

	if purged != 1 {
		t.Errorf("PurgeTracesBefore() = %d, want 1", purged)
	}
	if got := tracer.Trace(old.TraceID); len(got) != 0 {
		t.Errorf("expired trace still has %d spans", len(got))
	}
	if got := tracer.Trace(mixed.TraceID); len(got) != 2 {
		t.Errorf("trace with open span was purged, have %d spans", len(got))
	}

	// Finishing the straggler makes the whole trace purgeable.
	tracer.FinishSpan(openChild, nil)
	if purged := tracer.PurgeTracesBefore(cutoff); purged != 1 {
		t.Errorf("PurgeTracesBefore() after finish = %d, want 1", purged)
	}
	if tracer.TraceCount() != 0 {
		t.Errorf("TraceCount() = %d, want 0", tracer.TraceCount())
	}
}
