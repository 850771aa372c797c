package main

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/hatchvm/lib/stdlib"
	"github.com/chazu/hatchvm/vm"
	"github.com/chazu/hatchvm/vm/snapshot"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Boot the runtime from hatch.toml and run self-checks",
		Long: `Boot a script manager with the project's configuration, install the
native catalogue and [constants], then exercise containers, entities, the
error protocol, threads, snapshots and the collector.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mf, err := loadProject(cmd)
			if err != nil {
				return err
			}

			// Values live in Go variables between calls, so collection only
			// runs when the gc check asks for it.
			cfg := mf.VMConfig()
			cfg.AutoGC = false
			cfg.GCInterval = 0

			m := vm.NewManager(cfg)
			defer m.Shutdown()
			m.SetErrorHandler(func(*vm.Thread, *vm.ScriptError) vm.ErrorResult {
				return vm.ErrorContinue
			})

			if _, err := stdlib.Register(m); err != nil {
				return err
			}
			if err := mf.DefineConstants(m.Primary()); err != nil {
				return err
			}

			p := &checker{m: m, t: m.Primary()}
			return runChecks(cmd.OutOrStdout(), p, checks)
		},
	}
}

type check struct {
	name string
	run  func(p *checker) error
}

var checks = []check{
	{"arrays", checkArrays},
	{"maps", checkMaps},
	{"strings", checkStrings},
	{"entities", checkEntities},
	{"errors", checkErrors},
	{"threads", checkThreads},
	{"snapshots", checkSnapshots},
	{"gc", checkGC},
}

func runChecks(w io.Writer, p *checker, list []check) error {
	headingColor.Fprintf(w, "%s (session %s)\n", p.m.Config().Name, p.m.Session())
	failed := 0
	for _, c := range list {
		if err := c.run(p); err != nil {
			failed++
			failColor.Fprint(w, "  FAIL ")
			fmt.Fprintf(w, "%-10s %v\n", c.name, err)
			continue
		}
		okColor.Fprint(w, "  ok   ")
		fmt.Fprintln(w, c.name)
	}

	if gc := p.m.LastGC(); gc != nil {
		dimColor.Fprintf(w, "gc: marked %d, freed %d, %d -> %d bytes in %s\n",
			gc.Marked, gc.Freed, gc.BytesBefore, gc.BytesAfter, gc.Duration)
	}
	count, size := p.m.HeapStats(p.t)
	dimColor.Fprintf(w, "heap: %d objects, %d bytes\n", count, size)
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(list))
	}
	return nil
}

// checker calls catalogue natives from the primary thread.
type checker struct {
	m *vm.Manager
	t *vm.Thread
}

func (p *checker) call(path string, args ...vm.Value) (vm.Value, error) {
	fn, ok := p.m.Resolve(p.t, path)
	if !ok {
		return vm.Null, fmt.Errorf("%s is not defined", path)
	}
	return p.t.RunValue(fn, args...)
}

// calls runs a sequence of natives and stops at the first error.
func (p *checker) calls(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (p *checker) str(s string) vm.Value {
	v := vm.Null
	_ = p.m.WithLock(p.t, func(h *vm.Heap) error {
		v = vm.FromObject(h.NewString(s))
		return nil
	})
	return v
}

func (p *checker) text(v vm.Value) string {
	s := ""
	_ = p.m.WithLock(p.t, func(*vm.Heap) error {
		s = v.String()
		return nil
	})
	return s
}

// expect compares the printed form of v with want.
func (p *checker) expect(what string, v vm.Value, want string) error {
	if got := p.text(v); got != want {
		return fmt.Errorf("%s = %s, want %s", what, got, want)
	}
	return nil
}

func checkArrays(p *checker) error {
	a, err := p.call("Array.Create")
	if err != nil {
		return err
	}
	for _, n := range []int32{3, 1, 2} {
		if _, err := p.call("Array.Push", a, vm.FromInteger(n)); err != nil {
			return err
		}
	}
	if _, err := p.call("Array.Sort", a); err != nil {
		return err
	}
	return p.expect("sorted array", a, "[1, 2, 3]")
}

func checkMaps(p *checker) error {
	mp, err := p.call("Map.Create")
	if err != nil {
		return err
	}
	if _, err := p.call("Map.Put", mp, p.str("hp"), vm.FromInteger(30)); err != nil {
		return err
	}
	v, err := p.call("Map.Get", mp, p.str("hp"))
	if err != nil {
		return err
	}
	return p.expect("hp", v, "30")
}

func checkStrings(p *checker) error {
	s, err := p.call("String.Concat", p.str("level"), vm.FromInteger(2))
	if err != nil {
		return err
	}
	up, err := p.call("String.ToUpperCase", s)
	if err != nil {
		return err
	}
	return p.expect("upper", up, "LEVEL2")
}

func checkEntities(p *checker) error {
	e, err := p.call("Entity.Create", vm.FromDecimal(4), vm.FromDecimal(2))
	if err != nil {
		return err
	}
	var exists, x vm.Value
	err = p.calls(
		func() (err error) { x, err = p.call("Entity.GetX", e); return err },
		func() (err error) { _, err = p.call("Entity.Destroy", e); return err },
		func() (err error) { exists, err = p.call("Entity.Exists", e); return err },
	)
	if err != nil {
		return err
	}
	if err := p.expect("x", x, "4.000000"); err != nil {
		return err
	}
	return p.expect("exists after destroy", exists, "0")
}

func checkErrors(p *checker) error {
	a, err := p.call("Array.Create", vm.FromInteger(2))
	if err != nil {
		return err
	}
	before := p.t.ErrorCount(vm.IndexOutOfRange)
	v, err := p.call("Array.Get", a, vm.FromInteger(5))
	if err != nil {
		return err
	}
	if !v.IsNull() {
		return fmt.Errorf("out of range Get = %s, want null", p.text(v))
	}
	if p.t.ErrorCount(vm.IndexOutOfRange) != before+1 {
		return fmt.Errorf("out of range Get was not reported")
	}
	return nil
}

func checkThreads(p *checker) error {
	ran := make(chan int32, 1)
	var fn vm.Value
	_ = p.m.WithLock(p.t, func(h *vm.Heap) error {
		fn = vm.FromObject(h.NewFunction("event", 1, vm.CodeFunc(func(_ *vm.Thread, f *vm.CallFrame) (vm.Value, error) {
			ran <- vm.CastAsInteger(f.Arg(0)).AsInteger()
			return vm.Null, nil
		})))
		return nil
	})
	id, err := p.call("Thread.RunEvent", fn, vm.FromInteger(7))
	if err != nil {
		return err
	}
	if id.IsNull() {
		return fmt.Errorf("no thread was started")
	}
	select {
	case got := <-ran:
		if got != 7 {
			return fmt.Errorf("event argument = %d, want 7", got)
		}
	case <-time.After(2 * time.Second):
		return fmt.Errorf("event did not run")
	}

	// The slot is released after the event returns.
	deadline := time.Now().Add(2 * time.Second)
	for p.m.ThreadCount() > 1 {
		if time.Now().After(deadline) {
			return fmt.Errorf("event thread did not retire")
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func checkSnapshots(p *checker) error {
	mp, err := p.call("Map.Create")
	if err != nil {
		return err
	}
	pos, err := p.call("Array.Create", vm.FromInteger(2), vm.FromDecimal(1.5))
	if err != nil {
		return err
	}
	if _, err := p.call("Map.Put", mp, p.str("name"), p.str("hero")); err != nil {
		return err
	}
	if _, err := p.call("Map.Put", mp, p.str("pos"), pos); err != nil {
		return err
	}
	want := p.text(mp)

	s, err := snapshot.Take(p.t, mp)
	if err != nil {
		return err
	}
	for _, f := range []snapshot.Format{snapshot.CBOR, snapshot.MsgPack} {
		var buf bytes.Buffer
		if err := snapshot.Encode(&buf, s, f); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		back, got, err := snapshot.Decode(&buf)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if got != f {
			return fmt.Errorf("decoded format %s, want %s", got, f)
		}
		v, err := snapshot.Load(p.t, back)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if err := p.expect(f.String()+" round trip", v, want); err != nil {
			return err
		}
	}
	return nil
}

func checkGC(p *checker) error {
	for range 16 {
		if _, err := p.call("Array.Create", vm.FromInteger(8)); err != nil {
			return err
		}
	}
	stats := p.m.ForceGarbageCollection(p.t)
	if stats.Skipped {
		return fmt.Errorf("collection skipped: %s", stats.Reason)
	}
	if stats.Freed == 0 {
		return fmt.Errorf("collection freed nothing")
	}
	return nil
}
