package stdlib

import (
	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// Resource natives
// ---------------------------------------------------------------------------

// resourceBindings installs Load<Kind>, Unload<Kind> and Get<Kind>Name for
// every resource kind, plus the kind-generic GetName and UnloadScope.
func (lib *Library) resourceBindings() []binding {
	var out []binding
	for _, kind := range vm.ResourceKinds() {
		out = append(out,
			binding{"Resources.Load" + kind.String(), lib.loadResource(kind)},
			binding{"Resources.Unload" + kind.String(), lib.unloadResource(kind)},
			binding{"Resources.Get" + kind.String() + "Name", lib.resourceName(kind)},
		)
	}
	return append(out,
		// GetName(kind, handle) - the name a handle was loaded from
		binding{"Resources.GetName", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			kind, err := resourceKindArg(t, args, 0)
			if err != nil {
				return vm.Null, err
			}
			r, err := vm.Resolve(lib.m.Resources().Registry(kind), args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			return newString(t, r.Name)
		})},

		// UnloadScope(scope) - release every resource of scope or narrower;
		// returns how many were released
		binding{"Resources.UnloadScope", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			scope, err := scopeArg(t, args, 0)
			if err != nil {
				return vm.Null, err
			}
			return intValue(lib.m.Resources().UnloadScope(scope))
		})},
	)
}

// loadResource returns Load<Kind>(name [, scope]). scope defaults to
// SCENE_SCOPE.
func (lib *Library) loadResource(kind vm.ResourceKind) vm.NativeFn {
	return vm.NativeAtLeast(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
		if len(args) > 2 {
			return vm.Null, vm.CheckArgCount(args, 2, t)
		}
		name, err := vm.GetString(args, 0, t)
		if err != nil {
			return vm.Null, err
		}
		scope := vm.SceneScope
		if len(args) > 1 {
			if scope, err = scopeArg(t, args, 1); err != nil {
				return vm.Null, err
			}
		}
		h, err := lib.m.Resources().Load(kind, name, scope)
		if err != nil {
			return vm.Null, err
		}
		return h.Value(), nil
	})
}

func (lib *Library) unloadResource(kind vm.ResourceKind) vm.NativeFn {
	return vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
		h, err := vm.GetHandle(args, 0, t)
		if err != nil {
			return vm.Null, err
		}
		return vm.Null, lib.m.Resources().Unload(kind, h)
	})
}

func (lib *Library) resourceName(kind vm.ResourceKind) vm.NativeFn {
	return vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
		r, err := vm.Resolve(lib.m.Resources().Registry(kind), args, 0, t)
		if err != nil {
			return vm.Null, err
		}
		return newString(t, r.Name)
	})
}

func resourceKindArg(t *vm.Thread, args []vm.Value, index int) (vm.ResourceKind, error) {
	k, err := vm.GetInteger(args, index, t)
	if err != nil {
		return 0, err
	}
	last := len(vm.ResourceKinds()) - 1
	if k < 0 || int(k) > last {
		return 0, vm.DomainErrorf(args[index], 0, last, "Unknown resource kind %d.", k)
	}
	return vm.ResourceKind(k), nil
}

func scopeArg(t *vm.Thread, args []vm.Value, index int) (vm.UnloadScope, error) {
	s, err := vm.GetInteger(args, index, t)
	if err != nil {
		return 0, err
	}
	if s < int32(vm.SceneScope) || s > int32(vm.GameScope) {
		return 0, vm.DomainErrorf(args[index], int(vm.SceneScope), int(vm.GameScope),
			"Unload scope %d is outside the range %d to %d.", s, vm.SceneScope, vm.GameScope)
	}
	return vm.UnloadScope(s), nil
}
