package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Global lock
// ---------------------------------------------------------------------------

// globalLock serializes heap access across VM threads. It is reentrant per
// VM thread so a native holding it can call back into script code.
type globalLock struct {
	mu    sync.Mutex
	owner atomic.Pointer[Thread]
	depth int // only touched by the owner
}

func (l *globalLock) acquire(t *Thread) {
	if l.owner.Load() == t {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(t)
	l.depth = 1
}

func (l *globalLock) release(t *Thread) {
	if l.owner.Load() != t {
		panic("vm: global lock released by a thread that does not hold it")
	}
	l.depth--
	if l.depth == 0 {
		l.owner.Store(nil)
		l.mu.Unlock()
	}
}

func (l *globalLock) heldBy(t *Thread) bool {
	return l.owner.Load() == t
}

// Guard is a held acquisition of the global lock. Unlock is idempotent, so
// `defer g.Unlock()` is always safe.
type Guard struct {
	m        *Manager
	t        *Thread
	released bool
}

// Lock acquires the global lock on behalf of t, blocking until it is
// available. It returns false once shutdown has started; the caller must
// then skip its heap operation entirely.
func (m *Manager) Lock(t *Thread) (*Guard, bool) {
	if m.closing.Load() {
		return nil, false
	}
	m.lock.acquire(t)
	if m.closing.Load() {
		m.lock.release(t)
		return nil, false
	}
	return &Guard{m: m, t: t}, true
}

// Unlock releases the acquisition.
func (g *Guard) Unlock() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.m.lock.release(g.t)
}

// Heap returns the heap. It must not be retained past Unlock.
func (g *Guard) Heap() *Heap {
	if g.released {
		panic("vm: heap accessed through a released guard")
	}
	return g.m.heap
}

// WithLock runs fn with the lock held by t and the heap in hand. It
// returns ErrShuttingDown without calling fn if the lock is unavailable.
func (m *Manager) WithLock(t *Thread, fn func(h *Heap) error) error {
	g, ok := m.Lock(t)
	if !ok {
		return ErrShuttingDown
	}
	defer g.Unlock()
	return fn(g.Heap())
}

// HoldsLock reports whether t currently holds the global lock.
func (m *Manager) HoldsLock(t *Thread) bool {
	return m.lock.heldBy(t)
}
