package simulation

import (
	"runtime"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/geometry"
	"github.com/sarchlab/cachesim/trace"
)

// A ResultHandler is told about every trace as soon as it completes.
type ResultHandler func(r Result)

// Builder can be used to build a simulation.
type Builder struct {
	ways        int
	cacheSizeKB int
	blockSize   int

	newVictimFinder func() cache.VictimFinder
	hooks           []Hook
	opener          trace.Opener
	format          trace.Format
	parallelism     int
	resultHandlers  []ResultHandler
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		ways:        1,
		cacheSizeKB: 1,
		blockSize:   64,
		opener:      trace.FileOpener{},
		format:      trace.DefaultFormat,
		parallelism: 1,
	}
}

// WithWays sets the associativity.
func (b Builder) WithWays(ways int) Builder {
	b.ways = ways
	return b
}

// WithCacheSizeKB sets the total capacity in kilobytes.
func (b Builder) WithCacheSizeKB(sizeKB int) Builder {
	b.cacheSizeKB = sizeKB
	return b
}

// WithBlockSize sets the block size in bytes.
func (b Builder) WithBlockSize(blockSize int) Builder {
	b.blockSize = blockSize
	return b
}

// WithVictimFinder sets how each engine creates its victim finder. Every
// engine calls the function once, so a stateful finder is never shared.
func (b Builder) WithVictimFinder(f func() cache.VictimFinder) Builder {
	b.newVictimFinder = f
	return b
}

// WithHook attaches a hook to every engine. Hooks must tolerate concurrent
// calls when the parallelism is above one.
func (b Builder) WithHook(hook Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// WithOpener sets where traces are read from.
func (b Builder) WithOpener(opener trace.Opener) Builder {
	b.opener = opener
	return b
}

// WithFormat sets the trace record format.
func (b Builder) WithFormat(format trace.Format) Builder {
	b.format = format
	return b
}

// WithParallelism sets how many traces are replayed at the same time. Zero
// or less means one per CPU.
func (b Builder) WithParallelism(n int) Builder {
	if n <= 0 {
		n = runtime.NumCPU()
	}

	b.parallelism = n
	return b
}

// WithResultHandler registers a function called after every trace.
func (b Builder) WithResultHandler(h ResultHandler) Builder {
	b.resultHandlers = append(
		b.resultHandlers[:len(b.resultHandlers):len(b.resultHandlers)], h)
	return b
}

// Build validates the geometry and builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	g, err := geometry.NewFromKB(b.ways, b.cacheSizeKB, b.blockSize)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		geometry:        g,
		newVictimFinder: b.newVictimFinder,
		hooks:           b.hooks,
		opener:          b.opener,
		format:          b.format,
		parallelism:     b.parallelism,
		resultHandlers:  b.resultHandlers,
	}

	s.id = newRunID()

	return s, nil
}
