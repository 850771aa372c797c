package vm

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Mark-sweep collection
// ---------------------------------------------------------------------------

// GCStats describes one collection attempt.
type GCStats struct {
	Marked      int
	Freed       int
	BytesBefore int
	BytesAfter  int
	Duration    time.Duration
	Timestamp   time.Time

	// Skipped is set when the attempt did not reach a safe point; Reason
	// says why.
	Skipped bool
	Reason  string
}

// ForceGarbageCollection collects the heap if t can reach a safe point:
// it takes the global lock and requires every other VM thread to be idle.
// Otherwise the attempt is skipped and reported as such.
func (m *Manager) ForceGarbageCollection(t *Thread) *GCStats {
	g, ok := m.Lock(t)
	if !ok {
		return &GCStats{Timestamp: time.Now(), Skipped: true, Reason: "shutting down"}
	}
	defer g.Unlock()
	return m.collectAtSafePoint(t)
}

// collectAtSafePoint requires the lock to be held by t.
func (m *Manager) collectAtSafePoint(t *Thread) *GCStats {
	if busy := m.busyThread(t); busy != nil {
		stats := &GCStats{
			Timestamp: time.Now(),
			Skipped:   true,
			Reason:    fmt.Sprintf("thread %d is running", busy.ID),
		}
		log.Debugf("gc skipped: %s", stats.Reason)
		return stats
	}
	return m.collect()
}

// busyThread returns a VM thread other than t that is currently running
// script code, or nil.
func (m *Manager) busyThread(t *Thread) *Thread {
	for _, u := range m.threads {
		if u != nil && u != t && u.active.Load() > 0 {
			return u
		}
	}
	return nil
}

type marker struct {
	gray   []Object
	marked int
}

func (mk *marker) value(v Value) {
	if v.typ == ObjectType {
		mk.object(v.obj)
	}
}

func (mk *marker) object(o Object) {
	hd := o.header()
	if hd.marked {
		return
	}
	hd.marked = true
	mk.marked++
	mk.gray = append(mk.gray, o)
}

// collect runs a full mark-sweep cycle. The caller holds the lock and has
// established a safe point.
func (m *Manager) collect() *GCStats {
	start := time.Now()
	h := m.heap
	stats := &GCStats{Timestamp: start, BytesBefore: h.bytes}

	mk := &marker{gray: make([]Object, 0, 64)}
	m.markRoots(mk)
	for len(mk.gray) > 0 {
		o := mk.gray[len(mk.gray)-1]
		mk.gray = mk.gray[:len(mk.gray)-1]
		blacken(mk, o)
	}
	stats.Marked = mk.marked
	stats.Freed = h.sweep()

	h.nextGC = h.bytes + h.growth
	stats.BytesAfter = h.bytes
	stats.Duration = time.Since(start)
	m.lastGC.Store(stats)

	log.Debugf("gc: marked %d, freed %d, %d -> %d bytes in %s",
		stats.Marked, stats.Freed, stats.BytesBefore, stats.BytesAfter, stats.Duration)
	return stats
}

func (m *Manager) markRoots(mk *marker) {
	for _, t := range m.threads {
		if t != nil {
			t.markRoots(mk)
		}
	}
	mk.object(m.globals)
	mk.object(m.constants)
	for _, c := range m.classes {
		mk.object(c)
	}
	for _, ns := range m.namespaces {
		mk.object(ns)
	}
	m.entities.eachInstance(func(e *EntityObject) {
		mk.object(e)
	})
}

// markRoots marks the live stack, pinned values and frame callables.
// Arguments of in-flight native calls stay on the stack until the call
// returns, so they survive collections triggered by reentrant calls.
func (t *Thread) markRoots(mk *marker) {
	for _, v := range t.stack[:t.sp] {
		mk.value(v)
	}
	for _, v := range t.pinned {
		mk.value(v)
	}
	for _, f := range t.frames {
		if f.Function != nil {
			mk.object(f.Function)
		}
		if f.Native != nil {
			mk.object(f.Native)
		}
	}
}

// blacken marks everything o references.
func blacken(mk *marker, o Object) {
	switch o := o.(type) {
	case *StringObject, *NativeObject, *StreamObject:
	case *ArrayObject:
		for _, v := range o.Values {
			mk.value(v)
		}
	case *MapObject:
		for _, v := range o.values {
			mk.value(v)
		}
	case *FunctionObject:
		for _, v := range o.Constants {
			mk.value(v)
		}
		if o.Class != nil {
			mk.object(o.Class)
		}
	case *BoundMethodObject:
		mk.value(o.Receiver)
		if o.Method != nil {
			mk.object(o.Method)
		}
	case *ClassObject:
		for _, v := range o.Methods {
			mk.value(v)
		}
		if o.Fields != nil {
			mk.object(o.Fields)
		}
		if o.Parent != nil {
			mk.object(o.Parent)
		}
		mk.value(o.Initializer)
	case *InstanceObject:
		blackenInstance(mk, o)
	case *EntityObject:
		blackenInstance(mk, &o.InstanceObject)
	case *NamespaceObject:
		mk.object(o.Members)
	default:
		panic(fmt.Sprintf("vm: cannot trace object of kind %s", o.Kind()))
	}
}

func blackenInstance(mk *marker, i *InstanceObject) {
	if i.Class != nil {
		mk.object(i.Class)
	}
	if i.Fields != nil {
		mk.object(i.Fields)
	}
}

// sweep unlinks unmarked objects, releases their native resources and
// clears the marks of survivors. It returns the number freed.
func (h *Heap) sweep() int {
	freed := 0
	var prev Object
	o := h.objects
	for o != nil {
		hd := o.header()
		next := hd.next
		if hd.marked {
			hd.marked = false
			prev = o
			o = next
			continue
		}
		if prev == nil {
			h.objects = next
		} else {
			prev.header().next = next
		}
		hd.next = nil
		hd.heap = nil
		hd.freed = true
		h.count--
		h.bytes -= hd.size
		if r, ok := o.(releaser); ok {
			r.release()
		}
		freed++
		o = next
	}
	return freed
}

// releaseAll releases every object regardless of reachability. Used at
// shutdown so native resources are closed.
func (h *Heap) releaseAll() {
	for o := h.objects; o != nil; o = o.header().next {
		if r, ok := o.(releaser); ok {
			r.release()
		}
	}
}
