package vm

import "time"

// Config holds the tunables of a script manager. The zero value is not
// useful; start from DefaultConfig.
type Config struct {
	// Name identifies the manager in logs.
	Name string

	// MaxThreads is the number of thread slots, the primary included.
	MaxThreads int

	// MaxFrames bounds call depth. Zero leaves it unbounded; exceeding a
	// bound is fatal.
	MaxFrames int

	// StackSize is the initial value stack capacity of each thread.
	StackSize int

	// AutoGC collects after native calls once the allocation threshold is
	// crossed, and lets the background collector sweep. GCInterval starts
	// the background collector when positive.
	AutoGC     bool
	GCInterval time.Duration
	GCGrowth   int

	// MaxHeapBytes makes allocation fatal past this many accounted bytes.
	// Zero means no limit.
	MaxHeapBytes int

	// ExitOnError makes the default error handler stop the thread instead
	// of continuing.
	ExitOnError bool

	// IgnoreAllErrors counts errors without logging or handling them.
	IgnoreAllErrors bool

	// ResourceRoot is the directory resources are loaded from.
	ResourceRoot string
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Name:       "hatchvm",
		MaxThreads: 8,
		StackSize:  defaultStackSize,
		AutoGC:     true,
		GCGrowth:   DefaultGCGrowth,
	}
}
