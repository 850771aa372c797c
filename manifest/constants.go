package manifest

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"fortio.org/safecast"

	"github.com/chazu/hatchvm/vm"
)

// reservedNames lists core classes and catalogue members that a
// [constants] entry must not shadow.
var reservedNames = map[string]bool{
	"Array":        true,
	"Map":          true,
	"String":       true,
	"Function":     true,
	"Entity":       true,
	"Stream":       true,
	"Number":       true,
	"Instance":     true,
	"Resources":    true,
	"Audio":        true,
	"Thread":       true,
	"Serializer":   true,
	"MasterVolume": true,
	"SCENE_SCOPE":  true,
	"GAME_SCOPE":   true,
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsReservedName reports whether name belongs to the runtime or its
// native catalogue. RESOURCE_* names are reserved as a family.
func IsReservedName(name string) bool {
	return reservedNames[name] || strings.HasPrefix(name, "RESOURCE_")
}

func (m *Manifest) validateConstants() error {
	for name, v := range m.Constants {
		if !identifier.MatchString(name) {
			return fmt.Errorf("constants.%s: not a valid identifier", name)
		}
		if IsReservedName(name) {
			return fmt.Errorf("constants.%s: name is reserved by the runtime", name)
		}
		if _, err := constantValue(v); err != nil {
			return fmt.Errorf("constants.%s: %w", name, err)
		}
	}
	return nil
}

func constantValue(v any) (vm.Value, error) {
	switch v := v.(type) {
	case int64:
		i, err := safecast.Conv[int32](v)
		if err != nil {
			return vm.Null, fmt.Errorf("%d does not fit in an Integer: %w", v, err)
		}
		return vm.FromInteger(i), nil
	case float64:
		return vm.FromDecimal(float32(v)), nil
	default:
		return vm.Null, fmt.Errorf("unsupported value %v (%T); constants must be numbers", v, v)
	}
}

// DefineConstants installs the [constants] table as read-only globals on
// t's manager, in name order.
func (m *Manifest) DefineConstants(t *vm.Thread) error {
	names := make([]string, 0, len(m.Constants))
	for name := range m.Constants {
		names = append(names, name)
	}
	slices.Sort(names)

	mgr := t.Manager()
	for _, name := range names {
		v, err := constantValue(m.Constants[name])
		if err != nil {
			return fmt.Errorf("constants.%s: %w", name, err)
		}
		if v.IsInteger() {
			err = mgr.GlobalConstInteger(t, name, v.AsInteger())
		} else {
			err = mgr.GlobalConstDecimal(t, name, v.AsDecimal())
		}
		if err != nil {
			return fmt.Errorf("constants.%s: %w", name, err)
		}
	}
	return nil
}
