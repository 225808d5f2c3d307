//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook that counts the number of Redis round-trips
// (individual commands and pipeline calls).
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		// Each pipeline call is one network round-trip regardless of command count.
		h.pipelines.Add(1)
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

func (h *cmdCounter) RoundTrips() int64 { return h.Commands() + h.Pipelines() }

// newCountedEngine builds an engine whose redis client carries a cmdCounter.
// The counter starts clean after a warmup ping.
func newCountedEngine(t *testing.T) (*goSession.Engine, *cmdCounter) {
	t.Helper()

	_, rdb := newIntegrationRedis(t)
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()

	return newIntegrationEngine(t, rdb), counter
}

func TestRedisBudgetIssue(t *testing.T) {
	ctx := context.Background()
	engine, counter := newCountedEngine(t)

	if _, err := engine.Issue(ctx, "u1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if got := counter.RoundTrips(); got > 1 {
		t.Fatalf("Issue: expected one pipelined round trip, got %d (commands=%d pipelines=%d)", got, counter.Commands(), counter.Pipelines())
	}
}

func TestRedisBudgetRotate(t *testing.T) {
	ctx := context.Background()
	engine, counter := newCountedEngine(t)

	pair, err := engine.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	// The first rotation may pay for loading the script.
	pair, err = engine.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("warm Rotate failed: %v", err)
	}

	counter.Reset()
	if _, err := engine.Rotate(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if got := counter.RoundTrips(); got > 2 {
		t.Fatalf("Rotate: expected at most 2 round trips (get + script), got %d", got)
	}
}

func TestRedisBudgetValidateIsStateless(t *testing.T) {
	ctx := context.Background()
	engine, counter := newCountedEngine(t)

	pair, err := engine.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	counter.Reset()
	for i := 0; i < 10; i++ {
		if _, err := engine.ValidateAccess(pair.AccessToken); err != nil {
			t.Fatalf("ValidateAccess failed: %v", err)
		}
	}
	if got := counter.RoundTrips(); got != 0 {
		t.Fatalf("ValidateAccess must not touch redis, got %d round trips", got)
	}
}

func TestRedisBudgetReuse(t *testing.T) {
	ctx := context.Background()
	engine, counter := newCountedEngine(t)

	first, err := engine.Issue(ctx, "u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := engine.Rotate(ctx, first.RefreshToken); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	counter.Reset()
	if _, err := engine.Rotate(ctx, first.RefreshToken); !errors.Is(err, goSession.ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}
	// get + revoke script, plus one retry when the script is not cached yet.
	if got := counter.RoundTrips(); got > 3 {
		t.Fatalf("reuse: expected at most 3 round trips, got %d", got)
	}
}
