package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled bool
	// BufferSize bounds the routine lane. The security lane gets the same
	// capacity.
	BufferSize int
	// DropIfFull discards routine events instead of waiting for space.
	// Security events are never dropped.
	DropIfFull bool
}

// Dispatcher forwards audit events to a sink on its own goroutine. Events of
// SeveritySecurity travel in a separate lane that the worker drains first and
// that never drops. A nil Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink     Sink
	dropFull bool

	routine  chan Event
	security chan Event

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool

	dropped atomic.Uint64
}

// NewDispatcher starts the worker. It returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := max(cfg.BufferSize, 1)
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:     sink,
		dropFull: cfg.DropIfFull,
		routine:  make(chan Event, size),
		security: make(chan Event, size),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go d.work()
	return d
}

func (d *Dispatcher) work() {
	defer close(d.stopped)

	for {
		select {
		case ev := <-d.security:
			d.sink.Emit(context.Background(), ev)
			continue
		default:
		}

		select {
		case ev := <-d.security:
			d.sink.Emit(context.Background(), ev)
		case ev := <-d.routine:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.flush(d.security)
			d.flush(d.routine)
			return
		}
	}
}

func (d *Dispatcher) flush(lane chan Event) {
	for {
		select {
		case ev := <-lane:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit queues event.
//
// Security events wait for lane space until Close, ignoring ctx so a
// cancelled request cannot lose a reuse report. Routine events are dropped
// and counted when DropIfFull is set and the lane is full; otherwise they
// wait for space, ctx, or Close.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}

	if event.Severity == SeveritySecurity {
		select {
		case d.security <- event:
		case <-d.stop:
		}
		return
	}

	if d.dropFull {
		select {
		case d.routine <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.routine <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events, flushes both lanes and waits for the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
	})
	<-d.stopped
}

// Dropped returns how many routine events were discarded on a full lane.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
