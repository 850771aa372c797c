package vm

import "io"

// ---------------------------------------------------------------------------
// Heap: allocation list and accounting
// ---------------------------------------------------------------------------

// DefaultGCGrowth is the number of bytes that may be allocated after a
// collection before the next automatic collection is due.
const DefaultGCGrowth = 1 << 20

// Heap owns every script-visible object. A *Heap is only handed out by a
// held lock Guard, so allocation always happens under the global lock.
type Heap struct {
	m       *Manager
	objects Object
	count   int
	bytes   int
	nextGC  int
	growth  int
	limit   int
}

func newHeap(m *Manager, growth, limit int) *Heap {
	if growth <= 0 {
		growth = DefaultGCGrowth
	}
	return &Heap{m: m, growth: growth, limit: limit, nextGC: growth}
}

// track links o into the allocation list. Exceeding the configured heap
// limit is fatal.
func (h *Heap) track(o Object, size int) {
	if h.limit > 0 && h.bytes+size > h.limit {
		h.m.fatal(nil, Fatalf("Out of memory: heap limit of %d bytes exceeded.", h.limit))
	}
	hd := o.header()
	hd.size = size
	hd.heap = h
	hd.next = h.objects
	h.objects = o
	h.count++
	h.bytes += size
}

// grow adjusts an object's accounted size after a mutation changed its
// footprint. Objects built outside a heap are not accounted. Growing past
// the heap limit is fatal and leaves the object unchanged.
func (hd *objectHeader) grow(delta int) {
	h := hd.heap
	if h == nil || hd.freed || delta == 0 {
		return
	}
	if delta > 0 && h.limit > 0 && h.bytes+delta > h.limit {
		h.m.fatal(nil, Fatalf("Out of memory: heap limit of %d bytes exceeded.", h.limit))
	}
	hd.size += delta
	h.bytes += delta
}

// Count returns the number of live allocations.
func (h *Heap) Count() int { return h.count }

// Bytes returns the accounted size of live allocations.
func (h *Heap) Bytes() int { return h.bytes }

// NextGC returns the byte threshold of the next automatic collection.
func (h *Heap) NextGC() int { return h.nextGC }

// ShouldCollect reports whether the allocation threshold was crossed.
func (h *Heap) ShouldCollect() bool { return h.bytes > h.nextGC }

// Each visits every allocated object, newest first.
func (h *Heap) Each(fn func(Object) bool) {
	for o := h.objects; o != nil; o = o.header().next {
		if !fn(o) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// NewString allocates a string holding a copy of s.
func (h *Heap) NewString(s string) *StringObject {
	return h.NewStringBytes([]byte(s))
}

// NewStringBytes allocates a string holding a copy of b.
func (h *Heap) NewStringBytes(b []byte) *StringObject {
	chars := make([]byte, len(b))
	copy(chars, b)
	s := &StringObject{chars: chars, hash: HashString(chars)}
	h.track(s, sizeHeader+len(chars))
	return s
}

// NewArray allocates an array of n copies of fill.
func (h *Heap) NewArray(n int, fill Value) *ArrayObject {
	if n < 0 {
		n = 0
	}
	values := make([]Value, n)
	for i := range values {
		values[i] = fill
	}
	a := &ArrayObject{Values: values}
	h.track(a, sizeHeader+n*sizeValue)
	return a
}

// NewArrayOf allocates an array holding a copy of values.
func (h *Heap) NewArrayOf(values ...Value) *ArrayObject {
	a := &ArrayObject{Values: append([]Value(nil), values...)}
	h.track(a, sizeHeader+len(values)*sizeValue)
	return a
}

// NewMap allocates an empty map.
func (h *Heap) NewMap() *MapObject {
	m := &MapObject{values: make(map[string]Value)}
	h.track(m, sizeHeader+mapBaseEntries*sizeMapEntry)
	return m
}

// NewFunction allocates a script function with a fixed arity.
func (h *Heap) NewFunction(name string, arity int, code Code) *FunctionObject {
	f := &FunctionObject{Name: name, Arity: arity, MinArity: arity, Code: code}
	h.track(f, sizeHeader+len(name))
	return f
}

// NewBoundMethod binds fn to receiver.
func (h *Heap) NewBoundMethod(receiver Value, fn *FunctionObject) *BoundMethodObject {
	b := &BoundMethodObject{Receiver: receiver, Method: fn}
	h.track(b, sizeHeader+sizeValue)
	return b
}

// NewNative wraps a Go function.
func (h *Heap) NewNative(name string, fn NativeFn) *NativeObject {
	n := &NativeObject{Name: name, Fn: fn}
	h.track(n, sizeHeader+len(name))
	return n
}

// NewClass allocates an empty class.
func (h *Heap) NewClass(name string) *ClassObject {
	c := &ClassObject{
		Name:    name,
		Hash:    HashName(name),
		Methods: make(map[string]Value),
		Fields:  h.NewMap(),
	}
	h.track(c, sizeHeader+len(name))
	return c
}

// NewInstance allocates an instance of class. Fields are created lazily.
func (h *Heap) NewInstance(class *ClassObject) *InstanceObject {
	i := &InstanceObject{Class: class}
	h.track(i, sizeHeader+sizeValue)
	return i
}

func (h *Heap) newEntity(class *ClassObject) *EntityObject {
	e := &EntityObject{InstanceObject: InstanceObject{Class: class}}
	h.track(e, sizeHeader+2*sizeValue)
	return e
}

// NewNamespace allocates an empty namespace.
func (h *Heap) NewNamespace(name string) *NamespaceObject {
	n := &NamespaceObject{Name: name, Hash: HashName(name), Members: h.NewMap()}
	h.track(n, sizeHeader+len(name))
	return n
}

// NewStream wraps an open native stream.
func (h *Heap) NewStream(name string, rw io.ReadWriteCloser, writable bool) *StreamObject {
	s := &StreamObject{Name: name, Writable: writable, rw: rw}
	h.track(s, sizeHeader+len(name))
	return s
}
