// Package manifest handles hatch.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/hatchvm/vm"
)

// Filename is the manifest file looked up by Load and FindAndLoad.
const Filename = "hatch.toml"

// Manifest represents a hatch.toml configuration.
type Manifest struct {
	Runtime   Runtime        `toml:"runtime" yaml:"runtime"`
	GC        GC             `toml:"gc" yaml:"gc"`
	Errors    Errors         `toml:"errors" yaml:"errors"`
	Log       Log            `toml:"log" yaml:"log"`
	Resources Resources      `toml:"resources" yaml:"resources"`
	Constants map[string]any `toml:"constants" yaml:"constants,omitempty"`

	// Dir is the directory containing the hatch.toml file (set at load time).
	Dir string `toml:"-" yaml:"-"`
}

// Runtime configures the script manager.
type Runtime struct {
	Name       string `toml:"name" yaml:"name"`
	MaxThreads int    `toml:"max-threads" yaml:"max-threads"`
	MaxFrames  int    `toml:"max-frames" yaml:"max-frames"`
	StackSize  int    `toml:"stack-size" yaml:"stack-size"`
}

// GC configures collection.
type GC struct {
	Auto     bool     `toml:"auto" yaml:"auto"`
	Interval Duration `toml:"interval" yaml:"interval"`
	Growth   int      `toml:"growth" yaml:"growth"`
	MaxHeap  int      `toml:"max-heap" yaml:"max-heap"`
}

// Errors configures the continuable error protocol.
type Errors struct {
	ExitOnError bool `toml:"exit-on-error" yaml:"exit-on-error"`
	IgnoreAll   bool `toml:"ignore-all" yaml:"ignore-all"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	Path      string `toml:"path" yaml:"path"`
}

// Resources configures asset loading.
type Resources struct {
	Root string `toml:"root" yaml:"root"`
}

// Duration is a time.Duration written as a string ("30s") in TOML and
// YAML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when a key, or the whole file,
// is absent.
func Default() *Manifest {
	cfg := vm.DefaultConfig()
	return &Manifest{
		Runtime: Runtime{
			Name:       cfg.Name,
			MaxThreads: cfg.MaxThreads,
			StackSize:  cfg.StackSize,
		},
		GC: GC{
			Auto:     cfg.AutoGC,
			Interval: Duration{vm.DefaultGCInterval},
			Growth:   cfg.GCGrowth,
		},
		Log: Log{Verbosity: 1},
		Resources: Resources{
			Root: "assets",
		},
	}
}

// Load parses a hatch.toml file from the given directory. Keys missing
// from the file keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a hatch.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, Filename)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate rejects values the runtime cannot use.
func (m *Manifest) Validate() error {
	switch {
	case m.Runtime.MaxThreads < 1:
		return fmt.Errorf("runtime.max-threads must be at least 1, got %d", m.Runtime.MaxThreads)
	case m.Runtime.MaxFrames < 0:
		return fmt.Errorf("runtime.max-frames cannot be negative, got %d", m.Runtime.MaxFrames)
	case m.Runtime.StackSize < 1:
		return fmt.Errorf("runtime.stack-size must be at least 1, got %d", m.Runtime.StackSize)
	case m.GC.Interval.Duration < 0:
		return fmt.Errorf("gc.interval cannot be negative, got %s", m.GC.Interval)
	case m.GC.Growth < 0 || m.GC.MaxHeap < 0:
		return fmt.Errorf("gc.growth and gc.max-heap cannot be negative")
	case m.Log.Verbosity < 0:
		return fmt.Errorf("log.verbosity cannot be negative, got %d", m.Log.Verbosity)
	}
	return m.validateConstants()
}

// ResourceRoot returns the absolute resource directory.
func (m *Manifest) ResourceRoot() string {
	return m.resolve(m.Resources.Root)
}

// LogPath returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.Path)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// VMConfig converts the manifest into a script manager configuration.
func (m *Manifest) VMConfig() vm.Config {
	return vm.Config{
		Name:            m.Runtime.Name,
		MaxThreads:      m.Runtime.MaxThreads,
		MaxFrames:       m.Runtime.MaxFrames,
		StackSize:       m.Runtime.StackSize,
		AutoGC:          m.GC.Auto,
		GCInterval:      m.GC.Interval.Duration,
		GCGrowth:        m.GC.Growth,
		MaxHeapBytes:    m.GC.MaxHeap,
		ExitOnError:     m.Errors.ExitOnError,
		IgnoreAllErrors: m.Errors.IgnoreAll,
		ResourceRoot:    m.ResourceRoot(),
	}
}
