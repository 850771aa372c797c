package vm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryHandsOutSequentialHandles(t *testing.T) {
	r := NewRegistry[string]("Sprite")
	for i, name := range []string{"a", "b", "c"} {
		h, err := r.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if int(h) != i {
			t.Errorf("handle %d, want %d", h, i)
		}
	}
	if r.Count() != 3 || r.Len() != 3 {
		t.Errorf("Count/Len = %d/%d", r.Count(), r.Len())
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry[int]("Sound")
	h, _ := r.Create(42)
	v, err := r.Resolve(h)
	if err != nil || v != 42 {
		t.Errorf("Resolve = %v, %v", v, err)
	}
}

func TestRegistryReusedSlotGetsNewHandle(t *testing.T) {
	r := NewRegistry[string]("Music")
	h0, _ := r.Create("intro")
	h1, _ := r.Create("loop")
	if _, err := r.Remove(h0); err != nil {
		t.Fatal(err)
	}
	h2, _ := r.Create("boss")
	if h2.Index() != h0.Index() {
		t.Errorf("slot %d not reused (got %d)", h0.Index(), h2.Index())
	}
	if h2 == h0 {
		t.Error("reused slot returned the stale handle")
	}

	_, err := r.Resolve(h0)
	var se *ScriptError
	if !errors.As(err, &se) || se.Kind != IndexOutOfRange {
		t.Fatalf("stale handle error = %v", err)
	}
	if !strings.Contains(se.Message, "unloaded") {
		t.Errorf("message = %q", se.Message)
	}
	if v, _ := r.Resolve(h1); v != "loop" {
		t.Errorf("neighbour handle resolves to %q", v)
	}
}

func TestRegistryOutOfRange(t *testing.T) {
	r := NewRegistry[string]("Model")
	r.Create("a")
	r.Create("b")
	for _, h := range []Handle{-1, 2, 500} {
		_, err := r.Resolve(h)
		var se *ScriptError
		if !errors.As(err, &se) {
			t.Fatalf("Resolve(%d) = %v", h, err)
		}
		if se.Kind != IndexOutOfRange || se.Min != 0 || se.Max != 1 {
			t.Errorf("Resolve(%d): kind %v range %d..%d", h, se.Kind, se.Min, se.Max)
		}
		if !strings.Contains(se.Message, "valid range 0 to 1") {
			t.Errorf("message = %q", se.Message)
		}
	}
}

func TestRegistryGenerationWraps(t *testing.T) {
	r := NewRegistry[int]("Image")
	h, _ := r.Create(0)
	for i := 0; i < maxGeneration; i++ {
		r.Remove(h)
		h, _ = r.Create(i)
	}
	if h.Generation() != maxGeneration {
		t.Fatalf("generation = %d, want %d", h.Generation(), maxGeneration)
	}
	r.Remove(h)
	h, _ = r.Create(1)
	if h.Generation() != 0 || h < 0 {
		t.Errorf("wrapped handle = %d (generation %d)", h, h.Generation())
	}
}

func TestRegistryRemoveIf(t *testing.T) {
	r := NewRegistry[int]("Texture")
	for i := 0; i < 6; i++ {
		r.Create(i)
	}
	removed := r.RemoveIf(func(v int) bool { return v%2 == 0 })
	if len(removed) != 3 || r.Count() != 3 {
		t.Errorf("removed %v, count %d", removed, r.Count())
	}
	var seen []int
	r.Each(func(_ Handle, v int) bool {
		seen = append(seen, v)
		return true
	})
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 5 {
		t.Errorf("remaining = %v", seen)
	}
}

// ---------------------------------------------------------------------------
// ResourceSet
// ---------------------------------------------------------------------------

func TestResourceSetLoadDedupes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hero.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	rs := NewResourceSet(FileLoader{Root: dir})

	h1, err := rs.Load(SpriteResource, "hero.png", SceneScope)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := rs.Load(SpriteResource, "hero.png", SceneScope)
	if err != nil || h1 != h2 {
		t.Errorf("second load = %d, %v; want %d", h2, err, h1)
	}
	r, err := rs.Get(SpriteResource, h1)
	if err != nil || string(r.Data) != "png" || r.Name != "hero.png" {
		t.Errorf("Get = %+v, %v", r, err)
	}
	if _, err := rs.Load(SpriteResource, "missing.png", SceneScope); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := rs.Load(SpriteResource, "../outside.png", SceneScope); err == nil {
		t.Error("path escaping the root should fail")
	}
}

func TestResourceSetUnloadScope(t *testing.T) {
	rs := NewResourceSet(nil)
	scene, _ := rs.Load(SoundResource, "step", SceneScope)
	game, _ := rs.Load(MusicResource, "theme", GameScope)

	if n := rs.UnloadScope(SceneScope); n != 1 {
		t.Errorf("scene unload released %d, want 1", n)
	}
	if _, err := rs.Get(SoundResource, scene); err == nil {
		t.Error("scene resource still resolves")
	}
	if _, err := rs.Get(MusicResource, game); err != nil {
		t.Errorf("game resource unloaded early: %v", err)
	}
	if n := rs.UnloadScope(GameScope); n != 1 {
		t.Errorf("game unload released %d, want 1", n)
	}

	// Reloading after unload yields a fresh, valid handle.
	h, err := rs.Load(SoundResource, "step", SceneScope)
	if err != nil || h == scene {
		t.Errorf("reload = %d, %v", h, err)
	}
}

func TestResourceSetUnload(t *testing.T) {
	rs := NewResourceSet(nil)
	h, _ := rs.Load(ModelResource, "tree", SceneScope)
	if err := rs.Unload(ModelResource, h); err != nil {
		t.Fatal(err)
	}
	if err := rs.Unload(ModelResource, h); err == nil {
		t.Error("double unload should fail")
	}
	if rs.Count(ModelResource) != 0 {
		t.Errorf("Count = %d", rs.Count(ModelResource))
	}
}
