package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatalf("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher must report zero drops")
	}
}

func TestDispatcherFlushesOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 events delivered, got %d", got)
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked sink and a full buffer")
	}

	close(sink.gate)
	d.Close()
}

type recordingGateSink struct {
	gate   chan struct{}
	mu     sync.Mutex
	events []Event
}

func (s *recordingGateSink) Emit(_ context.Context, ev Event) {
	<-s.gate
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingGateSink) count(severity Severity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Severity == severity {
			n++
		}
	}
	return n
}

func TestDispatcherNeverDropsSecurityEvents(t *testing.T) {
	sink := &recordingGateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(context.Background(), Event{EventType: "refresh_success", Severity: SeverityInfo})
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected routine drops with a blocked sink")
	}
	dropped := d.Dropped()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			d.Emit(ctx, Event{EventType: "refresh_reuse_detected", Severity: SeveritySecurity})
		}
	}()

	select {
	case <-done:
		t.Fatalf("security emit returned while its lane was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("security emit did not resume once the sink drained")
	}
	d.Close()

	if got := sink.count(SeveritySecurity); got != 3 {
		t.Fatalf("expected 3 security events delivered, got %d", got)
	}
	if d.Dropped() != dropped {
		t.Fatalf("security events must not count as drops: %d -> %d", dropped, d.Dropped())
	}
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	// One event occupies the sink, one fills the buffer.
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("blocking emit did not return after context expiry")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "refresh_reuse_detected", UserID: "7", FamilyID: "fam", Severity: SeveritySecurity})
	sink.Emit(context.Background(), Event{EventType: "refresh_success", Success: true})

	scanner := bufio.NewScanner(&buf)
	var events []Event
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(events))
	}
	if events[0].FamilyID != "fam" || events[0].Severity != SeveritySecurity {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{EventType: "refresh_reuse_detected", Severity: SeveritySecurity, FamilyID: "f1"})
	sink.Emit(context.Background(), Event{EventType: "refresh_expired", Severity: SeverityInfo})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d: %s", len(lines), buf.String())
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["level"] != "WARN" || first["family_id"] != "f1" {
		t.Fatalf("unexpected reuse record: %v", first)
	}
	if second["level"] != "INFO" || second["event_type"] != "refresh_expired" {
		t.Fatalf("unexpected expiry record: %v", second)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(0)
	sink.Emit(context.Background(), Event{EventType: "logout"})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "logout" {
			t.Fatalf("unexpected event %q", ev.EventType)
		}
	default:
		t.Fatalf("expected buffered event")
	}
}
