package vm

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Collector
// ---------------------------------------------------------------------------

// waitSweeps polls until the collector has attempted n sweeps.
func waitSweeps(t *testing.T, c *Collector, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.Stats().Sweeps < n {
		if time.Now().After(deadline) {
			t.Fatalf("Sweeps = %d after waiting, want %d", c.Stats().Sweeps, n)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestCollectorSweep(t *testing.T) {
	m := newTestManager(t)
	withHeap(t, m, func(h *Heap) {
		for i := 0; i < 5; i++ {
			h.NewArray(4, FromInteger(int32(i)))
		}
	})

	c := m.Collector()
	stats := c.Sweep()
	if stats == nil || stats.Skipped {
		t.Fatalf("sweep = %+v", stats)
	}
	if stats.Freed != 5 {
		t.Errorf("freed %d, want 5", stats.Freed)
	}
	got := c.Stats()
	if got.Sweeps != 1 || got.Skipped != 0 || got.Last != stats {
		t.Errorf("Stats = %+v", got)
	}
}

func TestCollectorDefaults(t *testing.T) {
	m := newTestManager(t)
	c := m.Collector()
	if c.Interval() != DefaultGCInterval {
		t.Errorf("Interval = %v, want %v", c.Interval(), DefaultGCInterval)
	}
	if c.Running() {
		t.Error("collector should not run without an interval")
	}
	if m.AutoGC() {
		t.Error("AutoGC should follow the config")
	}
}

func TestCollectorStartStop(t *testing.T) {
	m := newTestManagerWith(t, func(c *Config) {
		c.AutoGC = true
		c.GCInterval = 5 * time.Millisecond
	})
	c := m.Collector()
	if !c.Running() {
		t.Fatal("collector not started")
	}
	if c.Start() {
		t.Error("second Start began another loop")
	}
	waitSweeps(t, c, 2)

	c.Stop()
	c.Stop()
	if c.Running() {
		t.Error("collector still running after Stop")
	}
	n := c.Stats().Sweeps
	time.Sleep(30 * time.Millisecond)
	if c.Stats().Sweeps != n {
		t.Error("sweeps continued after Stop")
	}
}

func TestCollectorFollowsAutoGC(t *testing.T) {
	m := newTestManagerWith(t, func(c *Config) { c.GCInterval = 5 * time.Millisecond })
	c := m.Collector()
	if !c.Running() {
		t.Fatal("collector not started")
	}
	time.Sleep(40 * time.Millisecond)
	if n := c.Stats().Sweeps; n != 0 {
		t.Fatalf("collector swept %d times with automatic collection off", n)
	}

	m.SetAutoGC(true)
	waitSweeps(t, c, 1)
}

func TestCollectorRunStopsWithContext(t *testing.T) {
	m := newTestManager(t)
	m.SetAutoGC(true)
	c := newCollector(m, 2*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Run(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if c.Stats().Sweeps == 0 {
		t.Error("Run never swept")
	}
	if c.Running() {
		t.Error("Run must not mark the collector started")
	}
}

func TestAutoGCOffSkipsThresholdCollection(t *testing.T) {
	m := newTestManagerWith(t, func(c *Config) {
		c.AutoGC = true
		c.GCGrowth = 256
	})
	m.SetAutoGC(false)
	th := m.Primary()
	churn := newNative(t, m, "churn", func(th *Thread, args []Value) (Value, error) {
		return Null, th.Manager().WithLock(th, func(h *Heap) error {
			for i := 0; i < 32; i++ {
				h.NewString(strings.Repeat("y", 32))
			}
			return nil
		})
	})
	if _, err := th.RunValue(churn); err != nil {
		t.Fatal(err)
	}
	if stats := m.LastGC(); stats != nil {
		t.Errorf("collection ran with automatic collection off: %+v", stats)
	}
}
