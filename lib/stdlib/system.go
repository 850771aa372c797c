package stdlib

import (
	"bytes"
	"errors"
	"time"

	"github.com/chazu/hatchvm/vm"
	"github.com/chazu/hatchvm/vm/snapshot"
)

// ---------------------------------------------------------------------------
// Audio natives
// ---------------------------------------------------------------------------

const maxVolume = 100

func (lib *Library) audioBindings() []binding {
	return []binding{
		{"Audio.SetMasterVolume", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			v, err := vm.GetDecimal(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			if v < 0 || v > maxVolume {
				return vm.Null, vm.DomainErrorf(args[0], 0, maxVolume,
					"Master volume %g is outside the range 0 to %d.", v, maxVolume)
			}
			return vm.Null, locked(t, func(*vm.Heap) error {
				lib.volume = v
				return nil
			})
		})},

		{"Audio.GetMasterVolume", vm.NativeN(0, func(t *vm.Thread, _ []vm.Value) (vm.Value, error) {
			v, err := lib.MasterVolume(t)
			return vm.FromDecimal(v), err
		})},
	}
}

// MasterVolume reads the master volume under t's lock.
func (lib *Library) MasterVolume(t *vm.Thread) (float32, error) {
	var v float32
	err := locked(t, func(*vm.Heap) error {
		v = lib.volume
		return nil
	})
	return v, err
}

// ---------------------------------------------------------------------------
// Thread natives
// ---------------------------------------------------------------------------

func (lib *Library) threadBindings() []binding {
	return []binding{
		// RunEvent(callable, args...) - run callable on a new thread;
		// returns the thread id
		{"Thread.RunEvent", vm.NativeAtLeast(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			fn, err := vm.GetCallable(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			th, err := lib.m.Spawn(t, "", fn, args[1:]...)
			switch {
			case errors.Is(err, vm.ErrNoFreeThread):
				return vm.Null, vm.Errorf(vm.ResourceState, "No free thread to run the event.")
			case err != nil:
				return vm.Null, err
			}
			log.Debugf("thread %d started %s", t.ID, th.Name)
			return intValue(th.ID)
		})},

		// Sleep(ms) - block the calling thread
		{"Thread.Sleep", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			ms, err := vm.GetInteger(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			if ms < 0 {
				return vm.Null, vm.DomainErrorf(args[0], 0, 0, "Cannot sleep for a negative duration (%d ms).", ms)
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return vm.Null, nil
		})},

		{"Thread.Count", vm.NativeN(0, func(*vm.Thread, []vm.Value) (vm.Value, error) {
			return intValue(lib.m.ThreadCount())
		})},

		{"Thread.Id", vm.NativeN(0, func(t *vm.Thread, _ []vm.Value) (vm.Value, error) {
			return intValue(t.ID)
		})},
	}
}

// ---------------------------------------------------------------------------
// Serializer natives
// ---------------------------------------------------------------------------

func (lib *Library) serializerBindings() []binding {
	return []binding{
		// WriteToStream(stream, value [, format]) - format is "cbor"
		// (default) or "msgpack"
		{"Serializer.WriteToStream", vm.NativeAtLeast(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			if len(args) > 3 {
				return vm.Null, vm.CheckArgCount(args, 3, t)
			}
			s, err := vm.GetStream(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			name, err := vm.Optional(args, 2, t, vm.GetString, "cbor")
			if err != nil {
				return vm.Null, err
			}
			format, err := snapshot.ParseFormat(name)
			if err != nil {
				return vm.Null, vm.DomainErrorf(args[2], 0, 0, "Unknown serialization format %q.", name)
			}
			return vm.Null, locked(t, func(*vm.Heap) error {
				root, err := snapshot.Capture(args[1])
				if err != nil {
					return serializeError(err)
				}
				return serializeError(snapshot.Encode(s, snapshot.New(lib.m.Session(), root), format))
			})
		})},

		// ReadFromStream(stream) - the value written by WriteToStream
		{"Serializer.ReadFromStream", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetStream(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(h *vm.Heap) error {
				data, err := s.ReadAll()
				if err != nil {
					return streamError(err, "read from", s)
				}
				snap, _, err := snapshot.Decode(bytes.NewReader(data))
				if err != nil {
					return serializeError(err)
				}
				v, err = snapshot.Restore(h, snap.Root, func(name string) (*vm.ClassObject, bool) {
					return lib.m.LookupClass(t, name)
				})
				return serializeError(err)
			})
			return v, err
		})},
	}
}

// serializeError keeps script errors raised by the stream and reports
// codec failures as runtime errors.
func serializeError(err error) error {
	if err == nil {
		return nil
	}
	var se *vm.ScriptError
	if errors.As(err, &se) {
		return se
	}
	return vm.Errorf(vm.Runtime, "Serialization failed: %v", err)
}
