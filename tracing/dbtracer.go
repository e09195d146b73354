// Package tracing records what a simulation does, access by access or trace
// by trace.
package tracing

import (
	"fmt"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/simulation"
)

// AccessTableName is the table that receives one row per access.
const AccessTableName = "cache_accesses"

// ResultTableName is the table that receives one row per trace.
const ResultTableName = "trace_results"

type accessTableEntry struct {
	RunID   string
	Trace   string
	Seq     uint64
	Address string
	Tag     uint32
	SetID   uint32
	Offset  uint32
	Hit     bool
	Way     int
	Evicted bool
	Victim  uint32
}

type resultTableEntry struct {
	RunID        string
	Trace        string
	Skipped      bool
	Error        string
	NumSets      int
	Ways         int
	BlockSize    int
	Hits         uint64
	Misses       uint64
	Malformed    uint64
	HitRate      float64
	MissRate     float64
	HitMissRatio float64
}

// DBAccessTracer is a hook that stores every access into a data recorder.
type DBAccessTracer struct {
	runID   string
	backend datarecording.DataRecorder
}

// NewDBAccessTracer creates the access table and returns the tracer.
func NewDBAccessTracer(
	runID string,
	backend datarecording.DataRecorder,
) *DBAccessTracer {
	backend.CreateTable(AccessTableName, accessTableEntry{})

	return &DBAccessTracer{
		runID:   runID,
		backend: backend,
	}
}

// Func records access events and ignores the rest.
func (t *DBAccessTracer) Func(ctx simulation.HookCtx) {
	if ctx.Pos != simulation.HookPosAccess {
		return
	}

	info := ctx.Item.(simulation.AccessInfo)

	t.backend.InsertData(AccessTableName, accessTableEntry{
		RunID:   t.runID,
		Trace:   info.Trace,
		Seq:     info.Seq,
		Address: fmt.Sprintf("0x%08x", info.Address),
		Tag:     info.Fields.Tag,
		SetID:   info.Fields.Index,
		Offset:  info.Fields.Offset,
		Hit:     info.Hit,
		Way:     info.Way,
		Evicted: !info.Hit && info.Eviction.Evicted(),
		Victim:  info.Eviction.Victim.Tag,
	})
}

// DBResultRecorder stores the outcome of every trace.
type DBResultRecorder struct {
	runID   string
	sim     *simulation.Simulation
	backend datarecording.DataRecorder
}

// NewDBResultRecorder creates the result table and returns the recorder.
func NewDBResultRecorder(
	s *simulation.Simulation,
	backend datarecording.DataRecorder,
) *DBResultRecorder {
	backend.CreateTable(ResultTableName, resultTableEntry{})

	return &DBResultRecorder{
		runID:   s.ID(),
		sim:     s,
		backend: backend,
	}
}

// Record stores one result. It can be passed to WithResultHandler.
func (r *DBResultRecorder) Record(result simulation.Result) {
	g := r.sim.Geometry()
	s := result.Stats

	entry := resultTableEntry{
		RunID:        r.runID,
		Trace:        result.Trace,
		Skipped:      result.Skipped(),
		NumSets:      g.NumSets(),
		Ways:         g.Ways(),
		BlockSize:    g.BlockSize(),
		Hits:         s.Hits,
		Misses:       s.Misses,
		Malformed:    s.Malformed,
		HitRate:      s.HitRate,
		MissRate:     s.MissRate,
		HitMissRatio: s.HitMissRatio,
	}

	if result.Err != nil {
		entry.Error = result.Err.Error()
	}

	r.backend.InsertData(ResultTableName, entry)
}
