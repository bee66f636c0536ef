package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProbeRunnerAggregatesResults(t *testing.T) {
	runner := NewProbeRunner(time.Second, 0,
		DatabasePing("db", func(context.Context) error { return nil }),
		DatabasePing("redis", func(context.Context) error { return errors.New("down") }),
	)

	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected not ready with a failing check")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Healthy || results[1].Healthy {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[1].Error != "down" {
		t.Fatalf("expected error message, got %q", results[1].Error)
	}
}

func TestProbeRunnerCachesWithinTTL(t *testing.T) {
	calls := 0
	runner := NewProbeRunner(time.Second, time.Minute,
		DatabasePing("db", func(context.Context) error { calls++; return nil }),
	)

	runner.Ready(context.Background())
	runner.Ready(context.Background())
	if calls != 1 {
		t.Fatalf("expected 1 underlying check within the cache ttl, got %d", calls)
	}
}

func TestProbeRunnerNoCheckersIsReady(t *testing.T) {
	ready, results := NewProbeRunner(time.Second, 0).Ready(context.Background())
	if !ready || len(results) != 0 {
		t.Fatalf("expected trivially ready, got ready=%v results=%v", ready, results)
	}
}
