package vm

import (
	"context"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Collector: periodic heap collection
// ---------------------------------------------------------------------------

// DefaultGCInterval is the sweep interval used when none is configured.
const DefaultGCInterval = 30 * time.Second

// CollectorStats summarizes the background collector's work.
type CollectorStats struct {
	Sweeps  int // attempts, skipped ones included
	Skipped int
	Last    *GCStats
}

// Collector sweeps the heap on the manager's gc thread at a fixed interval
// while automatic collection is on. A tick that cannot reach a safe point is
// counted as skipped and never forced.
type Collector struct {
	m        *Manager
	interval time.Duration

	mu     sync.Mutex // guards cancel and done
	cancel context.CancelFunc
	done   chan struct{}

	sweepMu sync.Mutex // one sweep at a time on the gc thread
	statsMu sync.Mutex
	stats   CollectorStats
}

func newCollector(m *Manager, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	return &Collector{m: m, interval: interval}
}

// Interval returns the sweep interval.
func (c *Collector) Interval() time.Duration { return c.interval }

// Run sweeps every interval until ctx is done. Ticks are ignored while
// the manager's automatic collection is off.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.m.AutoGC() {
				c.Sweep()
			}
		}
	}
}

// Start runs the collector on its own goroutine until Stop. It reports
// false when the collector is already running.
func (c *Collector) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	log.Debugf("collector started (every %s)", c.interval)
	return true
}

// Stop cancels a running collector and waits for its last sweep.
func (c *Collector) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the collector goroutine is started.
func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Sweep collects now on the gc thread, after any sweep in progress.
func (c *Collector) Sweep() *GCStats {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	stats := c.m.ForceGarbageCollection(c.m.gcThread)

	c.statsMu.Lock()
	c.stats.Sweeps++
	if stats.Skipped {
		c.stats.Skipped++
	}
	c.stats.Last = stats
	c.statsMu.Unlock()
	return stats
}

// Stats returns a copy of the collector's counters.
func (c *Collector) Stats() CollectorStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}
