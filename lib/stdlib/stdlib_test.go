package stdlib

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newLib(t *testing.T) (*vm.Manager, *Library) {
	t.Helper()
	return newLibWith(t, func(*vm.Config) {})
}

func newLibWith(t *testing.T, tweak func(*vm.Config)) (*vm.Manager, *Library) {
	t.Helper()
	cfg := vm.DefaultConfig()
	cfg.AutoGC = false
	tweak(&cfg)
	m := vm.NewManager(cfg)
	m.SetFatalHandler(func(err *vm.FatalError) { panic(err) })
	t.Cleanup(m.Shutdown)
	lib, err := Register(m)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return m, lib
}

func withHeap(t *testing.T, m *vm.Manager, fn func(h *vm.Heap)) {
	t.Helper()
	if err := m.WithLock(m.Primary(), func(h *vm.Heap) error {
		fn(h)
		return nil
	}); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
}

// call resolves path and runs it on the primary thread.
func call(t *testing.T, m *vm.Manager, path string, args ...vm.Value) vm.Value {
	t.Helper()
	th := m.Primary()
	fn, ok := m.Resolve(th, path)
	if !ok {
		t.Fatalf("%s is not defined", path)
	}
	v, err := th.RunValue(fn, args...)
	if err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return v
}

// errorCount totals the continuable errors raised on the primary thread.
func errorCount(m *vm.Manager) int {
	th := m.Primary()
	n := 0
	for k := vm.ArgumentCount; k <= vm.Runtime; k++ {
		n += th.ErrorCount(k)
	}
	return n
}

// expectError runs path and checks that it yields null and raises kind.
func expectError(t *testing.T, m *vm.Manager, kind vm.ErrorKind, path string, args ...vm.Value) *vm.ScriptError {
	t.Helper()
	before := m.Primary().ErrorCount(kind)
	if v := call(t, m, path, args...); !v.IsNull() {
		t.Errorf("%s = %v, want null", path, v)
	}
	if m.Primary().ErrorCount(kind) != before+1 {
		t.Fatalf("%s did not raise %s (last error %+v)", path, kind, m.Primary().LastError())
	}
	return m.Primary().LastError()
}

func str(t *testing.T, m *vm.Manager, s string) vm.Value {
	t.Helper()
	var v vm.Value
	withHeap(t, m, func(h *vm.Heap) { v = vm.FromObject(h.NewString(s)) })
	return v
}

func ints(t *testing.T, m *vm.Manager, xs ...int32) vm.Value {
	t.Helper()
	var v vm.Value
	withHeap(t, m, func(h *vm.Heap) {
		a := h.NewArray(0, vm.Null)
		for _, x := range xs {
			a.Push(vm.FromInteger(x))
		}
		v = vm.FromObject(a)
	})
	return v
}

func printed(t *testing.T, m *vm.Manager, v vm.Value) string {
	t.Helper()
	var s string
	withHeap(t, m, func(*vm.Heap) { s = v.String() })
	return s
}

func scriptFn(t *testing.T, m *vm.Manager, name string, arity int, fn func(args []vm.Value) vm.Value) vm.Value {
	t.Helper()
	var v vm.Value
	withHeap(t, m, func(h *vm.Heap) {
		v = vm.FromObject(h.NewFunction(name, arity, vm.CodeFunc(func(_ *vm.Thread, f *vm.CallFrame) (vm.Value, error) {
			return fn(f.Args()), nil
		})))
	})
	return v
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestRegisterDefinesCatalogue(t *testing.T) {
	m, _ := newLib(t)
	th := m.Primary()
	for _, path := range []string{
		"Array.Sort", "Map.IteratorValue", "String.Substring", "Number.ToString",
		"Function.Bind", "Instance.IsClass", "Entity.GetX", "Stream.FromFile",
		"Resources.LoadSprite", "Resources.UnloadModel", "Resources.GetName",
		"Audio.SetMasterVolume", "Thread.RunEvent", "Serializer.ReadFromStream",
	} {
		if v, ok := m.Resolve(th, path); !ok || !vm.IsCallable(v) {
			t.Errorf("%s not registered", path)
		}
	}
	for name, want := range map[string]int32{"RESOURCE_SPRITE": 0, "RESOURCE_SOUND": int32(vm.SoundResource), "GAME_SCOPE": 1} {
		if v, ok := m.Global(th, name); !ok || v.AsInteger() != want {
			t.Errorf("%s = %v, want %d", name, v, want)
		}
	}
	if _, err := Register(m); err == nil {
		t.Error("second Register should fail on constants")
	}
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func TestArrayPushPopLength(t *testing.T) {
	m, _ := newLib(t)
	a := ints(t, m)
	call(t, m, "Array.Push", a, vm.FromInteger(4))
	call(t, m, "Array.Push", a, vm.FromDecimal(2.5))
	if n := call(t, m, "Array.Length", a); n.AsInteger() != 2 {
		t.Errorf("Length = %v, want 2", n)
	}
	if v := call(t, m, "Array.Pop", a); v.AsDecimal() != 2.5 {
		t.Errorf("Pop = %v, want 2.5", v)
	}
	call(t, m, "Array.Pop", a)
	se := expectError(t, m, vm.IndexOutOfRange, "Array.Pop", a)
	if se.Message != "Cannot pop from an empty array." {
		t.Errorf("message = %q", se.Message)
	}
}

func TestArrayPushStoresPlainValue(t *testing.T) {
	m, _ := newLib(t)
	var cell int32 = 7
	a := ints(t, m)
	call(t, m, "Array.Push", a, vm.LinkInteger(&cell))
	cell = 8
	if v := call(t, m, "Array.Get", a, vm.FromInteger(0)); v.IsLinked() || v.AsInteger() != 7 {
		t.Errorf("stored %v, want plain 7", v)
	}
}

func TestArrayWrongArgumentCount(t *testing.T) {
	m, _ := newLib(t)
	se := expectError(t, m, vm.ArgumentCount, "Array.Push", ints(t, m))
	if se.Message != "Expected 2 arguments but got 1." {
		t.Errorf("message = %q", se.Message)
	}
}

func TestArrayInsertEraseReverse(t *testing.T) {
	m, _ := newLib(t)
	a := ints(t, m, 1, 2, 3)
	call(t, m, "Array.Insert", a, vm.FromInteger(0), vm.FromInteger(0))
	call(t, m, "Array.Erase", a, vm.FromInteger(2))
	call(t, m, "Array.Reverse", a)
	if got := printed(t, m, a); got != "[3, 1, 0]" {
		t.Errorf("array = %s", got)
	}
	if i := call(t, m, "Array.IndexOf", a, vm.FromDecimal(1)); i.AsInteger() != 1 {
		t.Errorf("IndexOf(1.0) = %v", i)
	}
	if c := call(t, m, "Array.Contains", a, vm.FromInteger(9)); c.AsInteger() != 0 {
		t.Error("Contains(9) should be false")
	}
	expectError(t, m, vm.IndexOutOfRange, "Array.Erase", a, vm.FromInteger(3))
	call(t, m, "Array.SetAll", a, vm.Null)
	if got := printed(t, m, a); got != "[null, null, null]" {
		t.Errorf("after SetAll = %s", got)
	}
}

func TestArrayCreate(t *testing.T) {
	m, _ := newLib(t)
	a := call(t, m, "Array.Create", vm.FromInteger(3), vm.FromInteger(1))
	if got := printed(t, m, a); got != "[1, 1, 1]" {
		t.Errorf("Create = %s", got)
	}
	if got := printed(t, m, call(t, m, "Array.Create")); got != "[]" {
		t.Errorf("Create() = %s", got)
	}
	expectError(t, m, vm.Domain, "Array.Create", vm.FromInteger(-1))
}

func TestArraySortNumbersKeepsOthersInPlace(t *testing.T) {
	m, _ := newLib(t)
	var a vm.Value
	withHeap(t, m, func(h *vm.Heap) {
		a = vm.FromObject(h.NewArrayOf(
			vm.FromInteger(3), vm.FromObject(h.NewString("x")), vm.FromDecimal(1.5), vm.FromInteger(2),
		))
	})
	call(t, m, "Array.Sort", a)
	if got := printed(t, m, a); got != `[1.500000, "x", 2, 3]` {
		t.Errorf("sorted = %s", got)
	}
}

func TestArraySortComparatorIsStable(t *testing.T) {
	m, _ := newLib(t)
	var a vm.Value
	withHeap(t, m, func(h *vm.Heap) {
		a = vm.FromObject(h.NewArrayOf(
			vm.FromDecimal(2.5), vm.FromDecimal(1.1), vm.FromDecimal(2.1), vm.FromDecimal(1.9),
		))
	})
	// Compare by integer part only, so equal keys must keep their order.
	byFloor := scriptFn(t, m, "byFloor", 2, func(args []vm.Value) vm.Value {
		return vm.FromInteger(vm.CastAsInteger(args[0]).AsInteger() - vm.CastAsInteger(args[1]).AsInteger())
	})
	call(t, m, "Array.Sort", a, byFloor)
	if got := printed(t, m, a); got != "[1.100000, 1.900000, 2.500000, 2.100000]" {
		t.Errorf("sorted = %s", got)
	}
}

func TestArraySortBadComparator(t *testing.T) {
	m, _ := newLib(t)
	a := ints(t, m, 2, 1)
	bad := scriptFn(t, m, "bad", 2, func([]vm.Value) vm.Value { return vm.Null })
	expectError(t, m, vm.TypeMismatch, "Array.Sort", a, bad)
	if got := printed(t, m, a); got != "[2, 1]" {
		t.Errorf("array changed to %s", got)
	}
}

// ---------------------------------------------------------------------------
// Maps
// ---------------------------------------------------------------------------

func TestMapNatives(t *testing.T) {
	m, _ := newLib(t)
	mp := call(t, m, "Map.Create")
	call(t, m, "Map.Put", mp, str(t, m, "b"), vm.FromInteger(2))
	call(t, m, "Map.Put", mp, str(t, m, "a"), vm.FromInteger(1))

	if got := printed(t, m, call(t, m, "Map.Keys", mp)); got != `["b", "a"]` {
		t.Errorf("Keys = %s", got)
	}
	if got := printed(t, m, call(t, m, "Map.Values", mp)); got != "[2, 1]" {
		t.Errorf("Values = %s", got)
	}
	if v := call(t, m, "Map.Get", mp, str(t, m, "missing")); !v.IsNull() {
		t.Errorf("missing key = %v", v)
	}
	if h := call(t, m, "Map.Has", mp, str(t, m, "a")); h.AsInteger() != 1 {
		t.Error("Has(a) = false")
	}

	var sum int32
	for it := call(t, m, "Map.Iterate", mp, vm.FromInteger(0)); it.AsInteger() != 0; it = call(t, m, "Map.Iterate", mp, it) {
		sum += call(t, m, "Map.IteratorValue", mp, it).AsInteger()
	}
	if sum != 3 {
		t.Errorf("iterated sum = %d, want 3", sum)
	}
	expectError(t, m, vm.IndexOutOfRange, "Map.IteratorValue", mp, vm.FromInteger(5))

	if r := call(t, m, "Map.Remove", mp, str(t, m, "b")); r.AsInteger() != 1 {
		t.Error("Remove(b) = false")
	}
	if n := call(t, m, "Map.Length", mp); n.AsInteger() != 1 {
		t.Errorf("Length = %v", n)
	}
}

// ---------------------------------------------------------------------------
// Strings and numbers
// ---------------------------------------------------------------------------

func TestStringNatives(t *testing.T) {
	m, _ := newLib(t)
	s := str(t, m, "Hatchling")
	if got := printed(t, m, call(t, m, "String.Substring", s, vm.FromInteger(5))); got != "ling" {
		t.Errorf("Substring(5) = %q", got)
	}
	if got := printed(t, m, call(t, m, "String.Substring", s, vm.FromInteger(0), vm.FromInteger(5))); got != "Hatch" {
		t.Errorf("Substring(0, 5) = %q", got)
	}
	expectError(t, m, vm.IndexOutOfRange, "String.Substring", s, vm.FromInteger(10))
	expectError(t, m, vm.Domain, "String.Substring", s, vm.FromInteger(5), vm.FromInteger(5))
	expectError(t, m, vm.Domain, "String.Substring", s, vm.FromInteger(1), vm.FromInteger(math.MaxInt32))
	expectError(t, m, vm.Domain, "String.Substring", s, vm.FromInteger(9), vm.FromInteger(math.MaxInt32))

	if got := printed(t, m, call(t, m, "String.ToUpperCase", s)); got != "HATCHLING" {
		t.Errorf("upper = %q", got)
	}
	if got := printed(t, m, call(t, m, "String.Concat", s, vm.FromInteger(2))); got != "Hatchling2" {
		t.Errorf("Concat = %q", got)
	}
	if n := call(t, m, "String.Length", s); n.AsInteger() != 9 {
		t.Errorf("Length = %v", n)
	}
}

func TestStringParse(t *testing.T) {
	m, _ := newLib(t)
	if v := call(t, m, "String.ParseInteger", str(t, m, " 42 ")); v.AsInteger() != 42 {
		t.Errorf("ParseInteger = %v", v)
	}
	if v := call(t, m, "String.ParseDecimal", str(t, m, "0.5")); v.AsDecimal() != 0.5 {
		t.Errorf("ParseDecimal = %v", v)
	}
	se := expectError(t, m, vm.Domain, "String.ParseInteger", str(t, m, "forty"))
	if se.Message != `Could not parse "forty" as an Integer.` {
		t.Errorf("message = %q", se.Message)
	}
}

func TestNumberNatives(t *testing.T) {
	m, _ := newLib(t)
	if v := call(t, m, "Number.AsInteger", vm.FromDecimal(3.9)); !v.IsInteger() || v.AsInteger() != 3 {
		t.Errorf("AsInteger(3.9) = %v", v)
	}
	if v := call(t, m, "Number.AsDecimal", vm.FromInteger(2)); !v.IsDecimal() || v.AsDecimal() != 2 {
		t.Errorf("AsDecimal(2) = %v", v)
	}
	if got := printed(t, m, call(t, m, "Number.ToString", vm.FromInteger(12))); got != "12" {
		t.Errorf("ToString = %q", got)
	}
	expectError(t, m, vm.TypeMismatch, "Number.AsInteger", vm.Null)
}

// ---------------------------------------------------------------------------
// Functions and instances
// ---------------------------------------------------------------------------

func TestFunctionBind(t *testing.T) {
	m, _ := newLib(t)
	self := scriptFn(t, m, "self", 0, func([]vm.Value) vm.Value { return vm.Null })
	bound := call(t, m, "Function.Bind", self, vm.FromInteger(5))
	if !bound.IsObjectKind(vm.KindBoundMethod) {
		t.Fatalf("Bind = %s", vm.TypeName(bound))
	}
	expectError(t, m, vm.TypeMismatch, "Function.Bind", vm.FromInteger(1), vm.Null)
}

func TestInstanceNatives(t *testing.T) {
	m, _ := newLib(t)
	th := m.Primary()
	class, err := m.DefineClass(th, "Chest", "")
	if err != nil {
		t.Fatal(err)
	}
	inst := call(t, m, "Instance.Create", vm.FromObject(class))
	if v := call(t, m, "Instance.IsClass", inst, str(t, m, "Chest")); v.AsInteger() != 1 {
		t.Error("IsClass(Chest) = false")
	}
	if c := call(t, m, "Instance.GetClass", inst); c.AsObject() != class {
		t.Errorf("GetClass = %v", c)
	}
	call(t, m, "Instance.SetField", inst, str(t, m, "gold"), vm.FromInteger(30))
	if v := call(t, m, "Instance.GetField", inst, str(t, m, "gold")); v.AsInteger() != 30 {
		t.Errorf("gold = %v", v)
	}
	expectError(t, m, vm.Runtime, "Instance.GetField", inst, str(t, m, "silver"))
}

func TestIsClassOfNullIsFalse(t *testing.T) {
	m, _ := newLib(t)
	before := errorCount(m)
	if v := call(t, m, "Instance.IsClass", vm.Null, str(t, m, "Chest")); !v.IsInteger() || v.AsInteger() != 0 {
		t.Errorf("IsClass(null) = %v, want 0", v)
	}
	if errorCount(m) != before {
		t.Errorf("IsClass(null) raised %+v", m.Primary().LastError())
	}
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

func TestEntityNatives(t *testing.T) {
	m, _ := newLib(t)
	e := call(t, m, "Entity.Create", vm.FromDecimal(4), vm.FromInteger(9))
	if x := call(t, m, "Entity.GetX", e); x.AsDecimal() != 4 {
		t.Errorf("GetX = %v", x)
	}
	call(t, m, "Entity.SetPosition", e, vm.FromInteger(1), vm.FromInteger(2))
	if y := call(t, m, "Entity.GetY", e); y.AsDecimal() != 2 {
		t.Errorf("GetY = %v", y)
	}
	if d := call(t, m, "Entity.Destroy", e); d.AsInteger() != 1 {
		t.Error("Destroy = false")
	}
	if ex := call(t, m, "Entity.Exists", e); ex.AsInteger() != 0 {
		t.Error("Exists after destroy = true")
	}
	expectError(t, m, vm.ResourceState, "Entity.GetX", e)
	expectError(t, m, vm.TypeMismatch, "Entity.Exists", vm.FromInteger(1))
}

// ---------------------------------------------------------------------------
// Streams and serialization
// ---------------------------------------------------------------------------

func TestStreamWriteRead(t *testing.T) {
	dir := t.TempDir()
	m, _ := newLibWith(t, func(c *vm.Config) { c.ResourceRoot = dir })

	w := call(t, m, "Stream.FromFile", str(t, m, "save.txt"), str(t, m, "w"))
	call(t, m, "Stream.WriteString", w, str(t, m, "one\ntwo\n"))
	call(t, m, "Stream.Close", w)
	if c := call(t, m, "Stream.IsClosed", w); c.AsInteger() != 1 {
		t.Error("IsClosed = false after Close")
	}
	expectError(t, m, vm.ResourceState, "Stream.Close", w)
	expectError(t, m, vm.ResourceState, "Stream.WriteString", w, str(t, m, "x"))

	data, err := os.ReadFile(filepath.Join(dir, "save.txt"))
	if err != nil || string(data) != "one\ntwo\n" {
		t.Fatalf("file = %q, %v", data, err)
	}

	r := call(t, m, "Stream.FromFile", str(t, m, "save.txt"))
	for _, want := range []string{"one", "two"} {
		if got := printed(t, m, call(t, m, "Stream.ReadString", r)); got != want {
			t.Errorf("ReadString = %q, want %q", got, want)
		}
	}
	before := errorCount(m)
	if v := call(t, m, "Stream.ReadString", r); !v.IsNull() || errorCount(m) != before {
		t.Errorf("ReadString at EOF = %v", v)
	}
	se := expectError(t, m, vm.ResourceState, "Stream.WriteString", r, str(t, m, "x"))
	if se.Message != "Cannot write to a read-only stream." {
		t.Errorf("message = %q", se.Message)
	}

	expectError(t, m, vm.ResourceState, "Stream.FromFile", str(t, m, "missing.txt"))
	expectError(t, m, vm.Domain, "Stream.FromFile", str(t, m, "save.txt"), str(t, m, "rw"))
}

func TestStreamStaysUnderResourceRoot(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "assets")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	m, _ := newLibWith(t, func(c *vm.Config) { c.ResourceRoot = dir })

	outside := filepath.Join(base, "outside.txt")
	for _, path := range []string{"../outside.txt", "saves/../../outside.txt", outside} {
		se := expectError(t, m, vm.ResourceState, "Stream.FromFile", str(t, m, path), str(t, m, "w"))
		if !strings.Contains(se.Message, "escapes the resource root") {
			t.Errorf("%s: message = %q", path, se.Message)
		}
	}
	if _, err := os.Stat(outside); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file created outside the resource root: %v", err)
	}

	w := call(t, m, "Stream.FromFile", str(t, m, "saves/../slot1.sav"), str(t, m, "w"))
	call(t, m, "Stream.Close", w)
	if _, err := os.Stat(filepath.Join(dir, "slot1.sav")); err != nil {
		t.Errorf("in-root path not opened: %v", err)
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, _ := newLibWith(t, func(c *vm.Config) { c.ResourceRoot = dir })

	var value vm.Value
	withHeap(t, m, func(h *vm.Heap) {
		mp := h.NewMap()
		mp.Put("level", vm.FromInteger(3))
		mp.Put("items", vm.FromObject(h.NewArrayOf(vm.FromObject(h.NewString("key")), vm.FromDecimal(0.5))))
		value = vm.FromObject(mp)
	})
	for _, format := range []string{"cbor", "msgpack"} {
		w := call(t, m, "Stream.FromFile", str(t, m, format+".sav"), str(t, m, "w"))
		call(t, m, "Serializer.WriteToStream", w, value, str(t, m, format))
		call(t, m, "Stream.Close", w)

		r := call(t, m, "Stream.FromFile", str(t, m, format+".sav"))
		got := call(t, m, "Serializer.ReadFromStream", r)
		if printed(t, m, got) != printed(t, m, value) {
			t.Errorf("%s: read back %s, want %s", format, printed(t, m, got), printed(t, m, value))
		}
	}

	w := call(t, m, "Stream.FromFile", str(t, m, "bad.sav"), str(t, m, "w"))
	fn := scriptFn(t, m, "f", 0, func([]vm.Value) vm.Value { return vm.Null })
	expectError(t, m, vm.Runtime, "Serializer.WriteToStream", w, fn)
	expectError(t, m, vm.Domain, "Serializer.WriteToStream", w, value, str(t, m, "json"))
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

func TestResourceNatives(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hero.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, _ := newLibWith(t, func(c *vm.Config) { c.ResourceRoot = dir })

	h := call(t, m, "Resources.LoadSprite", str(t, m, "hero.png"))
	if h.AsInteger() != 0 {
		t.Errorf("first handle = %v, want 0", h)
	}
	if again := call(t, m, "Resources.LoadSprite", str(t, m, "hero.png")); again.AsInteger() != h.AsInteger() {
		t.Errorf("reload = %v, want %v", again, h)
	}
	name := call(t, m, "Resources.GetName", vm.FromInteger(int32(vm.SpriteResource)), h)
	if got := printed(t, m, name); got != "hero.png" {
		t.Errorf("GetName = %q", got)
	}
	call(t, m, "Resources.UnloadSprite", h)
	se := expectError(t, m, vm.IndexOutOfRange, "Resources.GetSpriteName", h)
	if se.Message == "" {
		t.Error("empty message")
	}
	expectError(t, m, vm.ResourceState, "Resources.LoadSound", str(t, m, "missing.wav"))
	expectError(t, m, vm.Domain, "Resources.LoadMusic", str(t, m, "hero.png"), vm.FromInteger(5))

	call(t, m, "Resources.LoadImage", str(t, m, "hero.png"), vm.FromInteger(int32(vm.GameScope)))
	if n := call(t, m, "Resources.UnloadScope", vm.FromInteger(int32(vm.SceneScope))); n.AsInteger() != 0 {
		t.Errorf("scene unload released %v", n)
	}
	if n := call(t, m, "Resources.UnloadScope", vm.FromInteger(int32(vm.GameScope))); n.AsInteger() != 1 {
		t.Errorf("game unload released %v", n)
	}
}

// ---------------------------------------------------------------------------
// Audio and threads
// ---------------------------------------------------------------------------

func TestMasterVolume(t *testing.T) {
	m, lib := newLib(t)
	th := m.Primary()
	se := expectError(t, m, vm.Domain, "Audio.SetMasterVolume", vm.FromInteger(150))
	if se.Min != 0 || se.Max != 100 {
		t.Errorf("range = %d..%d", se.Min, se.Max)
	}
	call(t, m, "Audio.SetMasterVolume", vm.FromInteger(40))
	if v := call(t, m, "Audio.GetMasterVolume"); v.AsDecimal() != 40 {
		t.Errorf("GetMasterVolume = %v", v)
	}
	g, _ := m.Global(th, "MasterVolume")
	if !g.IsLinked() || g.AsDecimal() != 40 {
		t.Errorf("MasterVolume global = %v", g)
	}
	if err := m.SetGlobal(th, "MasterVolume", vm.FromInteger(25)); err != nil {
		t.Fatal(err)
	}
	if v, _ := lib.MasterVolume(th); v != 25 {
		t.Errorf("volume after global write = %v", v)
	}
}

func TestThreadNatives(t *testing.T) {
	m, _ := newLib(t)
	ran := make(chan int32, 1)
	var event vm.Value
	withHeap(t, m, func(h *vm.Heap) {
		event = vm.FromObject(h.NewNative("event", func(_ *vm.Thread, args []vm.Value) (vm.Value, error) {
			ran <- args[0].AsInteger()
			return vm.Null, nil
		}))
	})
	id := call(t, m, "Thread.RunEvent", event, vm.FromInteger(11))
	if id.AsInteger() < 1 {
		t.Errorf("RunEvent id = %v", id)
	}
	select {
	case got := <-ran:
		if got != 11 {
			t.Errorf("event got %d, want 11", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event did not run")
	}

	if c := call(t, m, "Thread.Count"); c.AsInteger() < 1 {
		t.Errorf("Count = %v", c)
	}
	if c := call(t, m, "Thread.Id"); c.AsInteger() != 0 {
		t.Errorf("Id on primary = %v", c)
	}
	call(t, m, "Thread.Sleep", vm.FromInteger(1))
	expectError(t, m, vm.Domain, "Thread.Sleep", vm.FromInteger(-5))
	expectError(t, m, vm.TypeMismatch, "Thread.RunEvent", vm.FromInteger(3))
}
