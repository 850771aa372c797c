package vm

import (
	"fmt"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Entities: script instances bound to simulation objects
// ---------------------------------------------------------------------------

// EntityClassName names the built-in class every entity class derives from.
const EntityClassName = "Entity"

// SceneObject is the native, scene-owned half of an entity. Its fields are
// exposed to scripts as linked values while the object is alive.
type SceneObject struct {
	X      float32
	Y      float32
	SpeedX float32
	SpeedY float32
	Depth  int32
	Active int32
}

// EntityRef addresses a slot of an EntityArena. A ref whose generation no
// longer matches the slot refers to a destroyed object.
type EntityRef struct {
	Index      uint32
	Generation uint32
}

func (r EntityRef) String() string {
	return fmt.Sprintf("entity#%d.%d", r.Index, r.Generation)
}

// EntityObject is an Instance whose native half lives in the manager's
// entity arena. Collecting the EntityObject never destroys the scene
// object; destroying the scene object delinks the instance.
type EntityObject struct {
	InstanceObject
	Ref   EntityRef
	arena *EntityArena
}

func (e *EntityObject) Kind() ObjectKind { return KindEntity }

// Scene returns the live scene object, or false if it was destroyed. The
// caller must hold the global lock.
func (e *EntityObject) Scene() (*SceneObject, bool) {
	if e.arena == nil {
		return nil, false
	}
	return e.arena.Get(e.Ref)
}

// Exists reports whether the scene object is still alive.
func (e *EntityObject) Exists() bool {
	_, ok := e.Scene()
	return ok
}

// linkFields exposes the scene object's cells as linked instance fields.
func (e *EntityObject) linkFields(h *Heap, obj *SceneObject) {
	if e.Fields == nil {
		e.Fields = h.NewMap()
	}
	e.Fields.Put("X", LinkDecimal(&obj.X))
	e.Fields.Put("Y", LinkDecimal(&obj.Y))
	e.Fields.Put("SpeedX", LinkDecimal(&obj.SpeedX))
	e.Fields.Put("SpeedY", LinkDecimal(&obj.SpeedY))
	e.Fields.Put("Depth", LinkInteger(&obj.Depth))
	e.Fields.Put("Active", LinkInteger(&obj.Active))
}

// delinkFields replaces every linked field with a plain snapshot so no
// value keeps aliasing a dead scene object.
func (e *EntityObject) delinkFields() {
	if e.Fields == nil {
		return
	}
	for _, k := range e.Fields.keys {
		v := e.Fields.values[k]
		if v.IsLinked() {
			e.Fields.values[k] = Delink(v)
		}
	}
}

// errEntityGone is raised when a script uses an entity whose scene object
// was destroyed.
func errEntityGone(ref EntityRef) *ScriptError {
	return Errorf(ResourceState, "Entity %s no longer exists.", ref)
}

// ---------------------------------------------------------------------------
// EntityArena
// ---------------------------------------------------------------------------

type entitySlot struct {
	generation uint32
	live       bool
	obj        *SceneObject
	inst       *EntityObject
}

// EntityArena owns scene objects and hands out generation-tagged refs.
// It is guarded by the manager's global lock.
type EntityArena struct {
	slots []entitySlot
	free  []uint32
	live  int
}

// NewEntityArena creates an empty arena.
func NewEntityArena() *EntityArena {
	return &EntityArena{}
}

// Spawn stores obj and returns its ref. Freed slots are reused with a
// bumped generation.
func (a *EntityArena) Spawn(obj *SceneObject) EntityRef {
	a.live++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.live = true
		s.obj = obj
		return EntityRef{Index: idx, Generation: s.generation}
	}
	a.slots = append(a.slots, entitySlot{live: true, obj: obj})
	idx, err := safecast.Conv[uint32](len(a.slots) - 1)
	if err != nil {
		panic(fmt.Errorf("entity arena overflow: %w", err))
	}
	return EntityRef{Index: idx}
}

// Get resolves ref to its scene object.
func (a *EntityArena) Get(ref EntityRef) (*SceneObject, bool) {
	if int(ref.Index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[ref.Index]
	if !s.live || s.generation != ref.Generation {
		return nil, false
	}
	return s.obj, true
}

// Instance returns the script instance bound to ref, if any.
func (a *EntityArena) Instance(ref EntityRef) (*EntityObject, bool) {
	if _, ok := a.Get(ref); !ok {
		return nil, false
	}
	inst := a.slots[ref.Index].inst
	return inst, inst != nil
}

func (a *EntityArena) bind(ref EntityRef, inst *EntityObject) {
	a.slots[ref.Index].inst = inst
	inst.Ref = ref
	inst.arena = a
}

// Destroy removes the scene object. The bound instance survives but is
// delinked, and every later lookup through ref fails.
func (a *EntityArena) Destroy(ref EntityRef) bool {
	if _, ok := a.Get(ref); !ok {
		return false
	}
	s := &a.slots[ref.Index]
	if s.inst != nil {
		s.inst.delinkFields()
	}
	s.live = false
	s.obj = nil
	s.inst = nil
	s.generation++
	a.free = append(a.free, ref.Index)
	a.live--
	return true
}

// Count returns the number of live scene objects.
func (a *EntityArena) Count() int { return a.live }

// Each calls fn for every live scene object until fn returns false.
func (a *EntityArena) Each(fn func(ref EntityRef, obj *SceneObject) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(EntityRef{Index: uint32(i), Generation: s.generation}, s.obj) {
			return
		}
	}
}

// eachInstance visits the instances of live entities; used for GC roots.
func (a *EntityArena) eachInstance(fn func(*EntityObject)) {
	for i := range a.slots {
		if s := &a.slots[i]; s.live && s.inst != nil {
			fn(s.inst)
		}
	}
}
