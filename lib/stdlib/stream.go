package stdlib

import (
	"errors"
	"io"
	"os"

	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// Stream natives
// ---------------------------------------------------------------------------

// openFlags maps a script open mode to os.OpenFile flags.
var openFlags = map[string]int{
	"r": os.O_RDONLY,
	"w": os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	"a": os.O_WRONLY | os.O_CREATE | os.O_APPEND,
}

func (lib *Library) streamBindings() []binding {
	return []binding{
		// FromFile(path [, mode]) - open path ("r", "w" or "a") under the
		// resource root
		{"Stream.FromFile", vm.NativeAtLeast(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			if len(args) > 2 {
				return vm.Null, vm.CheckArgCount(args, 2, t)
			}
			path, err := vm.GetString(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			mode, err := vm.Optional(args, 1, t, vm.GetString, "r")
			if err != nil {
				return vm.Null, err
			}
			flags, ok := openFlags[mode]
			if !ok {
				return vm.Null, vm.Errorf(vm.Domain, "Unknown stream mode %q; expected r, w or a.", mode)
			}
			return lib.openStream(t, path, flags)
		})},

		{"Stream.WriteString", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetStream(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			text, err := vm.GetString(args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error {
				if _, err := io.WriteString(s, text); err != nil {
					return streamError(err, "write to", s)
				}
				return nil
			})
		})},

		// ReadString(stream) - the next line, or null at end of stream
		{"Stream.ReadString", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetStream(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(h *vm.Heap) error {
				line, err := s.ReadLine()
				switch {
				case errors.Is(err, io.EOF):
					return nil
				case err != nil:
					return streamError(err, "read from", s)
				}
				v = vm.FromObject(h.NewString(line))
				return nil
			})
			return v, err
		})},

		{"Stream.Close", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetStream(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error {
				if err := s.Close(); err != nil {
					return streamError(err, "close", s)
				}
				return nil
			})
		})},

		{"Stream.IsClosed", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetStream(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			closed := false
			err = locked(t, func(*vm.Heap) error { closed = s.Closed(); return nil })
			return vm.FromBool(closed), err
		})},
	}
}

func (lib *Library) openStream(t *vm.Thread, path string, flags int) (vm.Value, error) {
	full, ok := vm.FileLoader{Root: lib.m.Config().ResourceRoot}.Path(path)
	if !ok {
		return vm.Null, vm.Errorf(vm.ResourceState, "Stream path %q escapes the resource root.", path)
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		return vm.Null, vm.Errorf(vm.ResourceState, "Could not open %q: %v", path, err)
	}
	log.Debugf("opened stream %q (flags %#x)", full, flags)

	v := vm.Null
	err = locked(t, func(h *vm.Heap) error {
		v = vm.FromObject(h.NewStream(path, f, flags != os.O_RDONLY))
		return nil
	})
	if err != nil {
		f.Close()
	}
	return v, err
}

// streamError keeps script errors from the stream intact and wraps I/O
// failures as ResourceState errors.
func streamError(err error, op string, s *vm.StreamObject) error {
	var se *vm.ScriptError
	if errors.As(err, &se) {
		return se
	}
	return vm.Errorf(vm.ResourceState, "Could not %s stream %q: %v", op, s.Name, err)
}
