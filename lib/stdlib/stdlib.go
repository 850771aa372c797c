// Package stdlib installs the script-facing native catalogue on a
// vm.Manager: containers, strings, numbers, instances, entities, streams,
// resources, audio, threads and serialization.
//
// Every binding follows the native contract. It checks its argument
// count, fetches arguments through the vm accessors, takes the global lock
// for heap work and yields Null when anything fails.
package stdlib

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	"github.com/tliron/commonlog"

	"github.com/chazu/hatchvm/vm"
)

var log = commonlog.GetLogger("hatchvm.stdlib")

// binding is one native installed at a dotted path.
type binding struct {
	path string
	fn   vm.NativeFn
}

// Library is the per-manager state behind the catalogue.
type Library struct {
	m *vm.Manager

	// volume backs the MasterVolume linked global. It is read and written
	// under the global lock.
	volume float32
}

// Register installs every binding on m. Paths that are already bound keep
// their existing native. Call it once per manager: the constants it
// defines cannot be redefined.
func Register(m *vm.Manager) (*Library, error) {
	lib := &Library{m: m, volume: 100}
	t := m.Primary()

	groups := [][]binding{
		lib.arrayBindings(),
		lib.mapBindings(),
		lib.stringBindings(),
		lib.numberBindings(),
		lib.functionBindings(),
		lib.instanceBindings(),
		lib.entityBindings(),
		lib.streamBindings(),
		lib.resourceBindings(),
		lib.audioBindings(),
		lib.threadBindings(),
		lib.serializerBindings(),
	}
	n := 0
	for _, g := range groups {
		for _, b := range g {
			if err := m.DefineNativeAt(t, b.path, b.fn); err != nil {
				return nil, fmt.Errorf("stdlib: define %s: %w", b.path, err)
			}
			n++
		}
	}
	if err := lib.defineGlobals(t); err != nil {
		return nil, err
	}
	log.Debugf("registered %d natives", n)
	return lib, nil
}

func (lib *Library) defineGlobals(t *vm.Thread) error {
	if err := lib.m.GlobalLinkDecimal(t, "MasterVolume", &lib.volume); err != nil {
		return fmt.Errorf("stdlib: link MasterVolume: %w", err)
	}
	consts := map[string]int32{
		"SCENE_SCOPE": int32(vm.SceneScope),
		"GAME_SCOPE":  int32(vm.GameScope),
	}
	for _, kind := range vm.ResourceKinds() {
		consts["RESOURCE_"+strings.ToUpper(kind.String())] = int32(kind)
	}
	for name, v := range consts {
		if err := lib.m.GlobalConstInteger(t, name, v); err != nil {
			return fmt.Errorf("stdlib: constant %s: %w", name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// locked runs fn under t's global lock.
func locked(t *vm.Thread, fn func(h *vm.Heap) error) error {
	return t.Manager().WithLock(t, fn)
}

// intValue converts a Go length or count to an Integer.
func intValue(n int) (vm.Value, error) {
	i, err := safecast.Conv[int32](n)
	if err != nil {
		return vm.Null, vm.Errorf(vm.Runtime, "Integer overflow: %d does not fit in an Integer.", n)
	}
	return vm.FromInteger(i), nil
}

// newString allocates a String value under t's lock.
func newString(t *vm.Thread, s string) (vm.Value, error) {
	v := vm.Null
	err := locked(t, func(h *vm.Heap) error {
		v = vm.FromObject(h.NewString(s))
		return nil
	})
	return v, err
}
