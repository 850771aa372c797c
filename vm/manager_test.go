package vm

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newTestManager returns a manager whose fatal handler panics with the
// *FatalError instead of exiting, and with automatic collection off so
// tests decide when the collector runs.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return newTestManagerWith(t, func(*Config) {})
}

func newTestManagerWith(t *testing.T, tweak func(*Config)) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AutoGC = false
	tweak(&cfg)
	m := NewManager(cfg)
	m.SetFatalHandler(func(err *FatalError) { panic(err) })
	t.Cleanup(m.Shutdown)
	return m
}

func withHeap(t *testing.T, m *Manager, fn func(h *Heap)) {
	t.Helper()
	err := m.WithLock(m.Primary(), func(h *Heap) error {
		fn(h)
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
}

func newNative(t *testing.T, m *Manager, name string, fn NativeFn) Value {
	t.Helper()
	var v Value
	withHeap(t, m, func(h *Heap) { v = FromObject(h.NewNative(name, fn)) })
	return v
}

// expectFatal runs fn and returns the *FatalError it raised.
func expectFatal(t *testing.T, fn func()) (fe *FatalError) {
	t.Helper()
	func() {
		defer func() {
			if r := recover(); r != nil {
				fe, _ = r.(*FatalError)
			}
		}()
		fn()
	}()
	if fe == nil {
		t.Fatal("expected a fatal error")
	}
	return fe
}

type nopCloser struct {
	io.ReadWriter
	closed *atomic.Bool
}

func (c nopCloser) Close() error {
	c.closed.Store(true)
	return nil
}

// ---------------------------------------------------------------------------
// Bootstrap and globals
// ---------------------------------------------------------------------------

func TestNewManagerBootstrapsCoreClasses(t *testing.T) {
	m := newTestManager(t)
	for _, name := range []string{"Array", "Map", "String", "Function", "Entity", "Stream"} {
		if _, ok := m.LookupClass(m.Primary(), name); !ok {
			t.Errorf("core class %s missing", name)
		}
	}
	if m.ThreadCount() != 1 {
		t.Errorf("ThreadCount = %d, want 1", m.ThreadCount())
	}
	if m.Session().String() == "" {
		t.Error("session id not set")
	}
}

func TestDefineNativeOnlyIfAbsent(t *testing.T) {
	m := newTestManager(t)
	th := m.Primary()
	first := func(*Thread, []Value) (Value, error) { return FromInteger(1), nil }
	second := func(*Thread, []Value) (Value, error) { return FromInteger(2), nil }

	if err := m.DefineNative(th, "answer", first); err != nil {
		t.Fatal(err)
	}
	if err := m.DefineNative(th, "answer", second); err != nil {
		t.Fatal(err)
	}
	fn, ok := m.Global(th, "answer")
	if !ok {
		t.Fatal("answer not defined")
	}
	got, err := th.RunValue(fn)
	if err != nil {
		t.Fatal(err)
	}
	if got.AsInteger() != 1 {
		t.Errorf("got %v, want 1 (first definition wins)", got)
	}
}

func TestDefineNativeAtPaths(t *testing.T) {
	m := newTestManager(t)
	th := m.Primary()
	fn := func(*Thread, []Value) (Value, error) { return FromInteger(9), nil }

	if err := m.DefineNativeAt(th, "Array.Answer", fn); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.ArrayClass.LookupMethod("Answer"); !ok {
		t.Error("Array.Answer not installed on the core Array class")
	}
	if err := m.DefineNativeAt(th, "Engine.Audio.Play", fn); err != nil {
		t.Fatal(err)
	}
	v, ok := m.Resolve(th, "Engine.Audio.Play")
	if !ok || !v.IsObjectKind(KindNative) {
		t.Fatalf("Resolve(Engine.Audio.Play) = %v, %v", v, ok)
	}
	if _, ok := m.Resolve(th, "Engine.Audio.Stop"); ok {
		t.Error("Resolve of a missing member should fail")
	}
	if err := m.DefineNativeAt(th, "Bad..Path", fn); err == nil {
		t.Error("empty path component should be rejected")
	}
}

func TestGlobalLinkAndConstants(t *testing.T) {
	m := newTestManager(t)
	th := m.Primary()

	var volume int32 = 50
	if err := m.GlobalLinkInteger(th, "MasterVolume", &volume); err != nil {
		t.Fatal(err)
	}
	if err := m.SetGlobal(th, "MasterVolume", FromInteger(75)); err != nil {
		t.Fatal(err)
	}
	if volume != 75 {
		t.Errorf("linked global wrote %d, want 75", volume)
	}
	volume = 20
	v, _ := m.Global(th, "MasterVolume")
	if v.AsInteger() != 20 {
		t.Errorf("linked global read %v, want 20", v)
	}

	if err := m.GlobalConstDecimal(th, "PI", 3.14159); err != nil {
		t.Fatal(err)
	}
	if err := m.GlobalConstDecimal(th, "PI", 3); err == nil {
		t.Error("redefining a constant should fail")
	}
	if err := m.SetGlobal(th, "PI", FromInteger(3)); err == nil {
		t.Error("assigning a constant should fail")
	}
	if v, ok := m.Global(th, "PI"); !ok || v.AsDecimal() != 3.14159 {
		t.Errorf("PI = %v, %v", v, ok)
	}
}

func TestDefineClassWithParent(t *testing.T) {
	m := newTestManager(t)
	th := m.Primary()
	base, err := m.DefineClass(th, "Enemy", "Entity")
	if err != nil {
		t.Fatal(err)
	}
	if !base.InheritsFrom("Entity") {
		t.Error("Enemy should inherit from Entity")
	}
	if _, err := m.DefineClass(th, "Enemy", ""); err == nil {
		t.Error("duplicate class should fail")
	}
	if _, err := m.DefineClass(th, "Boss", "Nope"); err == nil {
		t.Error("unknown parent should fail")
	}
}

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

func TestSpawnRunsAndRetires(t *testing.T) {
	m := newTestManager(t)
	var got atomic.Int32
	fn := newNative(t, m, "worker", func(th *Thread, args []Value) (Value, error) {
		n, err := GetInteger(args, 0, th)
		if err != nil {
			return Null, err
		}
		got.Store(n * 2)
		return Null, nil
	})

	th, err := m.Spawn(m.Primary(), "worker", fn, FromInteger(21))
	if err != nil {
		t.Fatal(err)
	}
	if th.ID == 0 {
		t.Error("spawned thread must not take the primary slot")
	}
	select {
	case <-th.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("spawned thread did not finish")
	}
	if got.Load() != 42 {
		t.Errorf("got %d, want 42", got.Load())
	}
	if m.ThreadCount() != 1 {
		t.Errorf("ThreadCount = %d after retire, want 1", m.ThreadCount())
	}
	if m.Thread(th.ID) != nil {
		t.Error("slot not released")
	}
}

func TestSpawnWithoutFreeSlot(t *testing.T) {
	m := newTestManagerWith(t, func(c *Config) { c.MaxThreads = 2 })
	release := make(chan struct{})
	block := newNative(t, m, "block", func(*Thread, []Value) (Value, error) {
		<-release
		return Null, nil
	})

	th, err := m.Spawn(m.Primary(), "", block)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Spawn(m.Primary(), "", block); !errors.Is(err, ErrNoFreeThread) {
		t.Errorf("second spawn error = %v, want ErrNoFreeThread", err)
	}
	close(release)
	<-th.Done()
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

func TestShutdownRefusesLockAndReleasesStreams(t *testing.T) {
	m := newTestManager(t)
	var closed atomic.Bool
	withHeap(t, m, func(h *Heap) {
		s := h.NewStream("log", nopCloser{ReadWriter: &bytes.Buffer{}, closed: &closed}, true)
		m.globals.Put("log", FromObject(s))
	})

	m.Shutdown()
	if !closed.Load() {
		t.Error("open stream not closed at shutdown")
	}
	if _, ok := m.Lock(m.Primary()); ok {
		t.Error("Lock should fail after shutdown")
	}
	if err := m.WithLock(m.Primary(), func(*Heap) error { return nil }); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("WithLock error = %v, want ErrShuttingDown", err)
	}
	m.Shutdown()
}
