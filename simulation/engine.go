// Package simulation replays memory-access traces against a set-associative
// cache and collects hit and miss statistics.
package simulation

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/geometry"
	"github.com/sarchlab/cachesim/trace"
)

// ErrInvalidState is returned when an engine is driven out of order.
var ErrInvalidState = errors.New("invalid engine state")

// State is the phase of an engine within one trace.
type State int

// The engine moves Idle -> Initialized -> Running -> Finished for every trace.
const (
	StateIdle State = iota
	StateInitialized
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateFinished:
		return "Finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AccessInfo describes what happened to one address.
type AccessInfo struct {
	Trace   string
	Seq     uint64
	Address uint32
	Fields  geometry.Fields
	Hit     bool
	Way     int

	// Eviction is only meaningful on a miss.
	Eviction cache.Eviction
}

// An Engine owns the cache state of one trace replay at a time. It is not
// safe for concurrent use.
type Engine struct {
	*HookableBase

	name     string
	geometry geometry.Geometry
	tags     *cache.TagArray

	state State
	stats Stats
	seq   uint64
}

// NewEngine creates an idle engine. A nil victim finder means LRU.
func NewEngine(
	name string,
	g geometry.Geometry,
	victimFinder cache.VictimFinder,
) *Engine {
	return &Engine{
		HookableBase: NewHookableBase(),
		name:         name,
		geometry:     g,
		tags:         cache.NewTagArray(g, victimFinder),
	}
}

// Name returns the name of the engine.
func (e *Engine) Name() string {
	return e.name
}

// Geometry returns the cache geometry.
func (e *Engine) Geometry() geometry.Geometry {
	return e.geometry
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Tags exposes the cache state for inspection.
func (e *Engine) Tags() *cache.TagArray {
	return e.tags
}

// Stats returns the counters collected so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Start begins a new trace with an empty cache and zeroed counters.
func (e *Engine) Start(traceName string) error {
	if e.state == StateInitialized || e.state == StateRunning {
		return fmt.Errorf("%w: cannot start %s while %s is %s",
			ErrInvalidState, traceName, e.stats.Trace, e.state)
	}

	e.tags.Reset()
	e.stats = Stats{Trace: traceName, NumSets: e.geometry.NumSets()}
	e.seq = 0
	e.state = StateInitialized

	e.InvokeHook(HookCtx{Domain: e, Pos: HookPosTraceStart, Item: traceName})

	return nil
}

// Access looks the address up, counts a hit or a miss and updates the
// replacement state.
func (e *Engine) Access(addr uint32) (AccessInfo, error) {
	if e.state != StateInitialized && e.state != StateRunning {
		return AccessInfo{}, fmt.Errorf("%w: access while %s",
			ErrInvalidState, e.state)
	}

	e.state = StateRunning
	e.seq++

	fields := e.geometry.Decode(addr)
	info := AccessInfo{
		Trace:   e.stats.Trace,
		Seq:     e.seq,
		Address: addr,
		Fields:  fields,
	}

	way, hit := e.tags.Lookup(fields.Index, fields.Tag)
	if hit {
		e.stats.Hits++
		e.tags.RecordHit(fields.Index, way)
		info.Hit = true
		info.Way = way
	} else {
		e.stats.Misses++
		info.Eviction = e.tags.RecordMiss(fields.Index, fields.Tag)
		info.Way = info.Eviction.Way
	}

	e.InvokeHook(HookCtx{Domain: e, Pos: HookPosAccess, Item: info})

	return info, nil
}

// SkipRecord counts a malformed record. It contributes to neither hits nor
// misses.
func (e *Engine) SkipRecord(err *trace.MalformedRecordError) error {
	if e.state != StateInitialized && e.state != StateRunning {
		return fmt.Errorf("%w: skip record while %s", ErrInvalidState, e.state)
	}

	e.state = StateRunning
	e.stats.Malformed++

	e.InvokeHook(HookCtx{Domain: e, Pos: HookPosMalformedRecord, Item: err})

	return nil
}

// Finish computes the rates and ends the trace.
func (e *Engine) Finish() (Stats, error) {
	if e.state != StateInitialized && e.state != StateRunning {
		return Stats{}, fmt.Errorf("%w: finish while %s",
			ErrInvalidState, e.state)
	}

	e.stats.finalize()
	e.state = StateFinished

	e.InvokeHook(HookCtx{Domain: e, Pos: HookPosTraceEnd, Item: e.stats})

	return e.stats, nil
}

// Run replays a whole trace. Malformed records are skipped. Any other read
// error aborts the trace and leaves the engine Finished.
func (e *Engine) Run(traceName string, src trace.Source) (Stats, error) {
	err := e.Start(traceName)
	if err != nil {
		return Stats{}, err
	}

	for {
		addr, err := src.Next()
		if err == io.EOF {
			break
		}

		var malformed *trace.MalformedRecordError
		switch {
		case errors.As(err, &malformed):
			if err := e.SkipRecord(malformed); err != nil {
				return Stats{}, err
			}
			continue
		case err != nil:
			e.state = StateFinished
			return Stats{}, fmt.Errorf("reading trace %s: %w", traceName, err)
		}

		if _, err := e.Access(addr); err != nil {
			return Stats{}, err
		}
	}

	return e.Finish()
}
