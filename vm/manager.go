package vm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// FatalHandler receives unrecoverable errors. It must not return; the
// default logs the error and exits the process. A handler that returns
// anyway causes a panic carrying the error.
type FatalHandler func(err *FatalError)

// ErrorHandler decides whether a thread continues after a runtime error.
type ErrorHandler func(t *Thread, err *ScriptError) ErrorResult

// Manager is the process-wide owner of script state: the heap, the global
// tables, the thread slots, entities and resources. Every heap mutation
// happens under its global lock.
type Manager struct {
	config  Config
	session uuid.UUID

	lock    globalLock
	heap    *Heap
	closing atomic.Bool
	autoGC  atomic.Bool

	slotsMu     sync.RWMutex // guards the threads table for readers outside the lock
	threads     []*Thread
	threadCount atomic.Int32
	gcThread    *Thread
	spawned     sync.WaitGroup

	globals    *MapObject
	constants  *MapObject
	classes    map[string]*ClassObject
	namespaces map[string]*NamespaceObject
	entities   *EntityArena
	resources  *ResourceSet
	collector  *Collector

	handlerMu    sync.RWMutex
	fatalHandler FatalHandler
	errorHandler ErrorHandler

	lastGC atomic.Value // *GCStats

	ArrayClass    *ClassObject
	MapClass      *ClassObject
	StringClass   *ClassObject
	FunctionClass *ClassObject
	EntityClass   *ClassObject
	StreamClass   *ClassObject
}

// NewManager creates a manager with its primary thread and core classes.
// The background collector runs when cfg.GCInterval is positive.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = def.MaxThreads
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = def.StackSize
	}
	if cfg.GCGrowth <= 0 {
		cfg.GCGrowth = def.GCGrowth
	}

	m := &Manager{
		config:     cfg,
		session:    uuid.New(),
		classes:    make(map[string]*ClassObject),
		namespaces: make(map[string]*NamespaceObject),
		entities:   NewEntityArena(),
		resources:  NewResourceSet(FileLoader{Root: cfg.ResourceRoot}),
	}
	m.heap = newHeap(m, cfg.GCGrowth, cfg.MaxHeapBytes)
	m.threads = make([]*Thread, cfg.MaxThreads)
	m.threads[0] = newThread(m, 0, "main", cfg.StackSize)
	m.threadCount.Store(1)
	m.gcThread = newThread(m, -1, "gc", 16)
	m.autoGC.Store(cfg.AutoGC)
	m.collector = newCollector(m, cfg.GCInterval)

	t := m.threads[0]
	m.lock.acquire(t)
	h := m.heap
	m.globals = h.NewMap()
	m.constants = h.NewMap()
	m.ArrayClass = m.defineClassLocked(h, "Array", nil)
	m.MapClass = m.defineClassLocked(h, "Map", nil)
	m.StringClass = m.defineClassLocked(h, "String", nil)
	m.FunctionClass = m.defineClassLocked(h, "Function", nil)
	m.EntityClass = m.defineClassLocked(h, EntityClassName, nil)
	m.StreamClass = m.defineClassLocked(h, "Stream", nil)
	m.lock.release(t)

	if cfg.GCInterval > 0 {
		m.collector.Start()
	}
	log.Infof("script manager %s started (session %s, %d thread slots)", cfg.Name, m.session, cfg.MaxThreads)
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.config }

// Session identifies this runtime instance.
func (m *Manager) Session() uuid.UUID { return m.session }

// Closing reports whether shutdown has started.
func (m *Manager) Closing() bool { return m.closing.Load() }

// Resources returns the resource registries.
func (m *Manager) Resources() *ResourceSet { return m.resources }

// Collector returns the background collector.
func (m *Manager) Collector() *Collector { return m.collector }

// AutoGC reports whether automatic collection is on.
func (m *Manager) AutoGC() bool { return m.autoGC.Load() }

// SetAutoGC turns automatic collection on or off. While off, neither the
// allocation threshold nor the background collector's ticks collect;
// ForceGarbageCollection still does.
func (m *Manager) SetAutoGC(on bool) { m.autoGC.Store(on) }

// Entities returns the entity arena. Use it with the lock held.
func (m *Manager) Entities() *EntityArena { return m.entities }

// Shutdown refuses further lock acquisitions, waits for spawned threads,
// unloads resources and releases every native handle held by the heap.
// It is idempotent.
func (m *Manager) Shutdown() {
	if !m.closing.CompareAndSwap(false, true) {
		return
	}
	m.collector.Stop()
	m.spawned.Wait()

	t := m.gcThread
	m.lock.acquire(t)
	defer m.lock.release(t)
	n := m.resources.UnloadAll()
	m.heap.releaseAll()
	log.Infof("script manager %s shut down (%d objects, %d resources released)", m.config.Name, m.heap.count, n)
}

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

// Primary returns the thread in slot 0, owned by the host.
func (m *Manager) Primary() *Thread { return m.threads[0] }

// Thread returns the thread in slot id, or nil.
func (m *Manager) Thread(id int) *Thread {
	m.slotsMu.RLock()
	defer m.slotsMu.RUnlock()
	if id < 0 || id >= len(m.threads) {
		return nil
	}
	return m.threads[id]
}

// ThreadCount returns the number of live threads, the primary included.
func (m *Manager) ThreadCount() int { return int(m.threadCount.Load()) }

// Spawn runs callable with args on a new thread in a free slot. The
// callable and args are placed on the new thread's stack before Spawn
// returns, so they stay reachable. The thread retires its slot when the
// call completes.
func (m *Manager) Spawn(caller *Thread, name string, callable Value, args ...Value) (*Thread, error) {
	g, ok := m.Lock(caller)
	if !ok {
		return nil, ErrShuttingDown
	}
	defer g.Unlock()

	slot := -1
	for i := 1; i < len(m.threads); i++ {
		if m.threads[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, ErrNoFreeThread
	}
	if name == "" {
		name = fmt.Sprintf("thread-%d", slot)
	}
	t := newThread(m, slot, name, m.config.StackSize)
	t.Push(callable)
	for _, a := range args {
		t.Push(a)
	}

	m.slotsMu.Lock()
	m.threads[slot] = t
	m.slotsMu.Unlock()
	m.threadCount.Add(1)
	m.spawned.Add(1)
	go m.runThread(t, len(args))
	return t, nil
}

func (m *Manager) runThread(t *Thread, argCount int) {
	defer m.spawned.Done()
	defer close(t.done)
	defer m.retire(t)

	top := t.enter()
	err := t.CallValue(t.stack[0], argCount)
	t.leave(top)
	if err != nil {
		log.Debugf("thread %d (%s) stopped: %s", t.ID, t.Name, err)
	}
}

func (m *Manager) retire(t *Thread) {
	m.lock.acquire(t)
	t.ResetStack()
	m.slotsMu.Lock()
	m.threads[t.ID] = nil
	m.slotsMu.Unlock()
	m.threadCount.Add(-1)
	m.lock.release(t)
}

// ---------------------------------------------------------------------------
// Error channels
// ---------------------------------------------------------------------------

// SetFatalHandler replaces the fatal handler. nil restores the default.
func (m *Manager) SetFatalHandler(fn FatalHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.fatalHandler = fn
}

// SetErrorHandler replaces the runtime error handler. nil restores the
// default, which continues unless ExitOnError is set.
func (m *Manager) SetErrorHandler(fn ErrorHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.errorHandler = fn
}

// SetLoader replaces the resource loader.
func (m *Manager) SetLoader(l Loader) {
	m.resources.SetLoader(l)
}

func (m *Manager) handleError(t *Thread, e *ScriptError) ErrorResult {
	m.handlerMu.RLock()
	fn := m.errorHandler
	m.handlerMu.RUnlock()
	if fn != nil {
		return fn(t, e)
	}
	if m.config.ExitOnError {
		return ErrorExit
	}
	return ErrorContinue
}

// fatal hands err to the fatal handler and never returns.
func (m *Manager) fatal(t *Thread, err *FatalError) {
	if t != nil {
		err.Thread = t.ID
		log.Criticalf("%s\n%s", err.Message, t.traceText())
	} else {
		log.Criticalf("%s", err.Message)
	}
	m.handlerMu.RLock()
	fn := m.fatalHandler
	m.handlerMu.RUnlock()
	if fn == nil {
		os.Exit(1)
	}
	fn(err)
	panic(err)
}

// ---------------------------------------------------------------------------
// Global tables
// ---------------------------------------------------------------------------

// DefineGlobal binds name to v, replacing any previous binding.
func (m *Manager) DefineGlobal(t *Thread, name string, v Value) error {
	return m.WithLock(t, func(*Heap) error {
		m.globals.Put(name, v)
		return nil
	})
}

// Global looks up a global, then a constant.
func (m *Manager) Global(t *Thread, name string) (Value, bool) {
	var v Value
	var ok bool
	_ = m.WithLock(t, func(*Heap) error {
		if v, ok = m.globals.Get(name); !ok {
			v, ok = m.constants.Get(name)
		}
		return nil
	})
	return v, ok
}

// DefineNative binds a native function to a global name unless the name
// is already taken.
func (m *Manager) DefineNative(t *Thread, name string, fn NativeFn) error {
	return m.WithLock(t, func(h *Heap) error {
		if !m.globals.Has(name) {
			m.globals.Put(name, FromObject(h.NewNative(name, fn)))
		}
		return nil
	})
}

// DefineNativeAt binds a native at a dotted path. A single name is a
// global; "Class.Member" installs a method on the class, creating it if
// needed; leading components of a longer path are namespaces.
func (m *Manager) DefineNativeAt(t *Thread, path string, fn NativeFn) error {
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return m.DefineNative(t, path, fn)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("vm: invalid native path %q", path)
		}
	}
	return m.WithLock(t, func(h *Heap) error {
		var ns *NamespaceObject
		for _, name := range parts[:len(parts)-2] {
			ns = m.namespaceLocked(h, ns, name)
		}
		className := parts[len(parts)-2]
		member := parts[len(parts)-1]

		var class *ClassObject
		if ns == nil {
			class = m.classes[className]
		} else if v, ok := ns.Member(className); ok {
			class, _ = v.AsObject().(*ClassObject)
		}
		if class == nil {
			class = h.NewClass(className)
			if ns == nil {
				m.classes[className] = class
				m.globals.Put(className, FromObject(class))
			} else {
				ns.Members.Put(className, FromObject(class))
			}
		}
		if _, ok := class.Methods[member]; !ok {
			class.Methods[member] = FromObject(h.NewNative(path, fn))
		}
		return nil
	})
}

func (m *Manager) namespaceLocked(h *Heap, parent *NamespaceObject, name string) *NamespaceObject {
	if parent == nil {
		if ns, ok := m.namespaces[name]; ok {
			return ns
		}
		ns := h.NewNamespace(name)
		m.namespaces[name] = ns
		m.globals.Put(name, FromObject(ns))
		return ns
	}
	if v, ok := parent.Member(name); ok {
		if ns, ok := v.AsObject().(*NamespaceObject); ok {
			return ns
		}
	}
	ns := h.NewNamespace(parent.Name + "." + name)
	parent.Members.Put(name, FromObject(ns))
	return ns
}

// GlobalLinkInteger exposes a host int32 as a global. Scripts reading or
// assigning the global go through cell.
func (m *Manager) GlobalLinkInteger(t *Thread, name string, cell *int32) error {
	return m.DefineGlobal(t, name, LinkInteger(cell))
}

// GlobalLinkDecimal exposes a host float32 as a global.
func (m *Manager) GlobalLinkDecimal(t *Thread, name string, cell *float32) error {
	return m.DefineGlobal(t, name, LinkDecimal(cell))
}

// GlobalConstInteger defines a read-only Integer constant.
func (m *Manager) GlobalConstInteger(t *Thread, name string, v int32) error {
	return m.defineConstant(t, name, FromInteger(v))
}

// GlobalConstDecimal defines a read-only Decimal constant.
func (m *Manager) GlobalConstDecimal(t *Thread, name string, v float32) error {
	return m.defineConstant(t, name, FromDecimal(v))
}

func (m *Manager) defineConstant(t *Thread, name string, v Value) error {
	return m.WithLock(t, func(*Heap) error {
		if m.constants.Has(name) {
			return Errorf(Runtime, "Constant %s is already defined.", name)
		}
		m.constants.Put(name, v)
		return nil
	})
}

// SetGlobal assigns an existing global. Linked globals write through;
// constants cannot be assigned.
func (m *Manager) SetGlobal(t *Thread, name string, v Value) error {
	return m.WithLock(t, func(*Heap) error {
		if m.constants.Has(name) {
			return Errorf(Runtime, "Cannot assign to constant %s.", name)
		}
		cur, ok := m.globals.Get(name)
		if !ok {
			return Errorf(Runtime, "Undefined variable %s.", name)
		}
		if cur.IsLinked() {
			return cur.Store(v)
		}
		m.globals.Put(name, v)
		return nil
	})
}

// DefineClass creates a class, optionally derived from parent. The class
// is also bound as a global.
func (m *Manager) DefineClass(t *Thread, name, parent string) (*ClassObject, error) {
	var c *ClassObject
	err := m.WithLock(t, func(h *Heap) error {
		if _, ok := m.classes[name]; ok {
			return Errorf(Runtime, "Class %s is already defined.", name)
		}
		var p *ClassObject
		if parent != "" {
			var ok bool
			if p, ok = m.classes[parent]; !ok {
				return Errorf(Runtime, "Class %s does not exist.", parent)
			}
		}
		c = m.defineClassLocked(h, name, p)
		return nil
	})
	return c, err
}

func (m *Manager) defineClassLocked(h *Heap, name string, parent *ClassObject) *ClassObject {
	c := h.NewClass(name)
	c.Parent = parent
	m.classes[name] = c
	m.globals.Put(name, FromObject(c))
	return c
}

// DefineNamespace creates (or returns) a top-level namespace.
func (m *Manager) DefineNamespace(t *Thread, name string) (*NamespaceObject, error) {
	var ns *NamespaceObject
	err := m.WithLock(t, func(h *Heap) error {
		ns = m.namespaceLocked(h, nil, name)
		return nil
	})
	return ns, err
}

// LookupClass returns a top-level class by name.
func (m *Manager) LookupClass(t *Thread, name string) (*ClassObject, bool) {
	var c *ClassObject
	_ = m.WithLock(t, func(*Heap) error {
		c = m.classes[name]
		return nil
	})
	return c, c != nil
}

// GetClassMethod returns a method of a top-level class.
func (m *Manager) GetClassMethod(t *Thread, class, name string) (Value, bool) {
	c, ok := m.LookupClass(t, class)
	if !ok {
		return Null, false
	}
	return c.LookupMethod(name)
}

// Resolve walks a dotted path from the globals through namespaces, class
// methods and class fields.
func (m *Manager) Resolve(t *Thread, path string) (Value, bool) {
	parts := strings.Split(path, ".")
	cur, ok := m.Global(t, parts[0])
	if !ok {
		return Null, false
	}
	for _, name := range parts[1:] {
		switch o := cur.AsObject().(type) {
		case *NamespaceObject:
			cur, ok = o.Member(name)
		case *ClassObject:
			if cur, ok = o.LookupMethod(name); !ok {
				cur, ok = o.FieldDefault(name)
			}
		default:
			if inst, isInst := AsInstance(cur); isInst {
				cur, ok = inst.Field(name)
			} else {
				ok = false
			}
		}
		if !ok {
			return Null, false
		}
	}
	return cur, true
}

// ---------------------------------------------------------------------------
// Instances and entities
// ---------------------------------------------------------------------------

// instantiate creates an instance of c. Classes derived from Entity get a
// fresh scene object in the arena.
func (m *Manager) instantiate(h *Heap, c *ClassObject) (Value, error) {
	if c.InheritsFrom(m.EntityClass.Name) {
		e, err := m.newEntityLocked(h, c, &SceneObject{Active: 1})
		if err != nil {
			return Null, err
		}
		return FromObject(e), nil
	}
	return FromObject(h.NewInstance(c)), nil
}

// NewEntity stores obj in the entity arena and binds a new instance of
// class to it. class must derive from Entity.
func (m *Manager) NewEntity(t *Thread, class *ClassObject, obj *SceneObject) (*EntityObject, error) {
	var e *EntityObject
	err := m.WithLock(t, func(h *Heap) error {
		var err error
		e, err = m.newEntityLocked(h, class, obj)
		return err
	})
	return e, err
}

func (m *Manager) newEntityLocked(h *Heap, class *ClassObject, obj *SceneObject) (*EntityObject, error) {
	if class == nil || !class.InheritsFrom(m.EntityClass.Name) {
		name := "nil"
		if class != nil {
			name = class.Name
		}
		return nil, Errorf(Runtime, "Class %s does not inherit from Entity.", name)
	}
	if obj == nil {
		obj = &SceneObject{Active: 1}
	}
	e := h.newEntity(class)
	ref := m.entities.Spawn(obj)
	m.entities.bind(ref, e)
	e.linkFields(h, obj)
	return e, nil
}

// DestroyEntity removes the scene object behind ref. It reports false when
// ref is already dead.
func (m *Manager) DestroyEntity(t *Thread, ref EntityRef) bool {
	var ok bool
	_ = m.WithLock(t, func(*Heap) error {
		ok = m.entities.Destroy(ref)
		return nil
	})
	return ok
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// collectIfDue runs an automatic collection after a native call once the
// allocation threshold is crossed.
func (m *Manager) collectIfDue(t *Thread) {
	if !m.autoGC.Load() {
		return
	}
	g, ok := m.Lock(t)
	if !ok {
		return
	}
	defer g.Unlock()
	if m.heap.ShouldCollect() {
		m.collectAtSafePoint(t)
	}
}

// LastGC returns the statistics of the most recent completed collection,
// or nil.
func (m *Manager) LastGC() *GCStats {
	v := m.lastGC.Load()
	if v == nil {
		return nil
	}
	return v.(*GCStats)
}

// HeapStats returns the live object count and accounted bytes.
func (m *Manager) HeapStats(t *Thread) (count, bytes int) {
	_ = m.WithLock(t, func(h *Heap) error {
		count, bytes = h.Count(), h.Bytes()
		return nil
	})
	return count, bytes
}
