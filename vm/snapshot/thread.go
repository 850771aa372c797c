package snapshot

import (
	"github.com/chazu/hatchvm/vm"
)

// Take captures v under t's global lock.
func Take(t *vm.Thread, v vm.Value) (*Snapshot, error) {
	var s *Snapshot
	err := t.Manager().WithLock(t, func(*vm.Heap) error {
		root, err := Capture(v)
		if err != nil {
			return err
		}
		s = New(t.Manager().Session(), root)
		return nil
	})
	return s, err
}

// Load restores s under t's global lock. Instances are resolved against
// the manager's registered classes.
func Load(t *vm.Thread, s *Snapshot) (vm.Value, error) {
	m := t.Manager()
	v := vm.Null
	err := m.WithLock(t, func(h *vm.Heap) error {
		var err error
		v, err = Restore(h, s.Root, func(name string) (*vm.ClassObject, bool) {
			return m.LookupClass(t, name)
		})
		return err
	})
	return v, err
}
