package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalDriverFiresOnBoot(t *testing.T) {
	t.Parallel()

	driver := NewIntervalDriver(time.Hour, true)
	defer driver.Stop(context.Background())

	fired := make(chan time.Time, 1)
	if err := driver.Start(context.Background(), func(ts time.Time) {
		select {
		case fired <- ts:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate tick on start")
	}
}

func TestIntervalDriverTicks(t *testing.T) {
	t.Parallel()

	driver := NewIntervalDriver(10*time.Millisecond, false)
	defer driver.Stop(context.Background())

	var ticks atomic.Int64
	if err := driver.Start(context.Background(), func(time.Time) {
		ticks.Add(1)
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(time.Second)
	for ticks.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("expected at least two ticks")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestIntervalDriverStopHaltsTicking(t *testing.T) {
	t.Parallel()

	driver := NewIntervalDriver(5*time.Millisecond, false)

	var ticks atomic.Int64
	if err := driver.Start(context.Background(), func(time.Time) {
		ticks.Add(1)
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := driver.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	stopped := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if after := ticks.Load(); after > stopped+1 {
		t.Fatalf("driver kept ticking after stop: %d -> %d", stopped, after)
	}
}

func TestIntervalDriverNilJobIsNoop(t *testing.T) {
	t.Parallel()

	driver := NewIntervalDriver(time.Millisecond, true)
	if err := driver.Start(context.Background(), nil); err != nil {
		t.Fatalf("start with nil job: %v", err)
	}
	if err := driver.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
