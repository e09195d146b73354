package simulation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/geometry"
	"github.com/sarchlab/cachesim/trace"
)

// A Result is the outcome of one trace of a simulation. Err is set when the
// trace could not be replayed.
type Result struct {
	Trace string
	Stats Stats
	Err   error
}

// Skipped reports whether the trace was not replayed.
func (r Result) Skipped() bool {
	return r.Err != nil
}

// Unavailable reports whether the trace was skipped because it could not be
// opened.
func (r Result) Unavailable() bool {
	var unavailable *trace.TraceUnavailableError
	return errors.As(r.Err, &unavailable)
}

// A Simulation replays a list of traces. Each trace runs on its own engine
// with a fresh cache.
type Simulation struct {
	id       string
	geometry geometry.Geometry

	newVictimFinder func() cache.VictimFinder
	hooks           []Hook
	opener          trace.Opener
	format          trace.Format
	parallelism     int

	handlerLock    sync.Mutex
	resultHandlers []ResultHandler
}

func newRunID() string {
	return xid.New().String()
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Geometry returns the cache geometry shared by all traces.
func (s *Simulation) Geometry() geometry.Geometry {
	return s.geometry
}

// AcceptHook attaches a hook to the engines of later runs.
func (s *Simulation) AcceptHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

// AcceptResultHandler registers a function called after every trace of later
// runs.
func (s *Simulation) AcceptResultHandler(h ResultHandler) {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()

	s.resultHandlers = append(s.resultHandlers, h)
}

// NewEngine creates an engine that carries the simulation's hooks.
func (s *Simulation) NewEngine(name string) *Engine {
	var victimFinder cache.VictimFinder
	if s.newVictimFinder != nil {
		victimFinder = s.newVictimFinder()
	}

	e := NewEngine(name, s.geometry, victimFinder)
	for _, h := range s.hooks {
		e.AcceptHook(h)
	}

	return e
}

// Run replays every named trace and returns the results in the same order.
// A trace that cannot be opened is reported and skipped.
func (s *Simulation) Run(traceNames []string) []Result {
	results := make([]Result, len(traceNames))

	workers := min(s.parallelism, len(traceNames))
	if workers <= 1 {
		e := s.NewEngine(s.engineName(0))
		for i, name := range traceNames {
			results[i] = s.runOne(e, name)
		}

		return results
	}

	jobs := make(chan int)
	wg := sync.WaitGroup{}

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func(e *Engine) {
			defer wg.Done()

			for i := range jobs {
				results[i] = s.runOne(e, traceNames[i])
			}
		}(s.NewEngine(s.engineName(w)))
	}

	for i := range traceNames {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	return results
}

func (s *Simulation) engineName(worker int) string {
	return fmt.Sprintf("Engine[%d]", worker)
}

func (s *Simulation) runOne(e *Engine, name string) Result {
	result := Result{Trace: name}

	rc, err := s.opener.Open(name)
	if err != nil {
		var unavailable *trace.TraceUnavailableError
		if !errors.As(err, &unavailable) {
			err = &trace.TraceUnavailableError{Name: name, Err: err}
		}

		result.Err = err
		s.notify(result)

		return result
	}
	defer rc.Close()

	stats, err := e.Run(name, trace.NewReaderWithFormat(rc, s.format))
	result.Stats = stats
	result.Err = err

	s.notify(result)

	return result
}

func (s *Simulation) notify(r Result) {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()

	for _, h := range s.resultHandlers {
		h(r)
	}
}
