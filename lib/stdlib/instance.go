package stdlib

import (
	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// Instance and Entity natives
// ---------------------------------------------------------------------------

func (lib *Library) instanceBindings() []binding {
	return []binding{
		// Create(class, args...) - construct class as a script call would
		{"Instance.Create", vm.NativeAtLeast(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			if _, err := vm.GetClass(args, 0, t); err != nil {
				return vm.Null, err
			}
			return t.RunValue(args[0], args[1:]...)
		})},

		// IsClass(instance, name) - 1 if instance is exactly of class name;
		// null is of no class
		{"Instance.IsClass", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			if args[0].IsNull() {
				return vm.FromBool(false), nil
			}
			inst, err := vm.GetInstance(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			name, err := vm.GetString(args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.FromBool(inst.IsClass(name)), nil
		})},

		{"Instance.GetClass", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			inst, err := vm.GetInstance(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			if inst.Class == nil {
				return vm.Null, nil
			}
			return vm.FromObject(inst.Class), nil
		})},

		{"Instance.GetField", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			inst, err := vm.GetInstance(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			name, err := vm.GetString(args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(*vm.Heap) error {
				var ok bool
				if v, ok = inst.Field(name); !ok {
					return vm.Errorf(vm.Runtime, "Undefined field %s.", name)
				}
				return nil
			})
			return vm.Delink(v), err
		})},

		{"Instance.SetField", vm.NativeN(3, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			inst, err := vm.GetInstance(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			name, err := vm.GetString(args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(h *vm.Heap) error {
				return inst.SetField(h, name, vm.Delink(args[2]))
			})
		})},
	}
}

func (lib *Library) entityBindings() []binding {
	return []binding{
		// Create(x, y) - spawn a scene object bound to a new Entity
		{"Entity.Create", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			x, err := vm.GetDecimal(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			y, err := vm.GetDecimal(args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			e, err := lib.m.NewEntity(t, lib.m.EntityClass, &vm.SceneObject{X: x, Y: y, Active: 1})
			if err != nil {
				return vm.Null, err
			}
			return vm.FromObject(e), nil
		})},

		// Exists(entity) - 1 while the scene object is alive
		{"Entity.Exists", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			e, ok := args[0].AsObject().(*vm.EntityObject)
			if !ok {
				return vm.Null, vm.NewTypeMismatchError(1, vm.KindEntity.String(), vm.TypeName(args[0]))
			}
			alive := false
			err := locked(t, func(*vm.Heap) error { alive = e.Exists(); return nil })
			return vm.FromBool(alive), err
		})},

		{"Entity.Destroy", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			e, err := vm.GetEntity(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.FromBool(lib.m.DestroyEntity(t, e.Ref)), nil
		})},

		{"Entity.GetX", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			return sceneDecimal(t, args, func(o *vm.SceneObject) float32 { return o.X })
		})},

		{"Entity.GetY", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			return sceneDecimal(t, args, func(o *vm.SceneObject) float32 { return o.Y })
		})},

		{"Entity.SetPosition", vm.NativeN(3, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			e, err := vm.GetEntity(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			x, err := vm.GetDecimal(args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			y, err := vm.GetDecimal(args, 2, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error {
				obj, ok := e.Scene()
				if !ok {
					return vm.Errorf(vm.ResourceState, "Entity %s no longer exists.", e.Ref)
				}
				obj.X, obj.Y = x, y
				return nil
			})
		})},
	}
}

func sceneDecimal(t *vm.Thread, args []vm.Value, get func(*vm.SceneObject) float32) (vm.Value, error) {
	e, err := vm.GetEntity(args, 0, t)
	if err != nil {
		return vm.Null, err
	}
	v := vm.Null
	err = locked(t, func(*vm.Heap) error {
		obj, ok := e.Scene()
		if !ok {
			return vm.Errorf(vm.ResourceState, "Entity %s no longer exists.", e.Ref)
		}
		v = vm.FromDecimal(get(obj))
		return nil
	})
	return v, err
}
