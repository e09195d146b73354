package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/cachesim/simulation"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

func (b *ProgressBar) snapshot() progressBarRsp {
	b.Lock()
	defer b.Unlock()

	return progressBarRsp{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

type progressBarRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// A TraceTracker moves a progress bar as the traces of a simulation start
// and finish.
type TraceTracker struct {
	bar *ProgressBar
}

// NewTraceTracker creates a tracker that updates the given bar.
func NewTraceTracker(bar *ProgressBar) *TraceTracker {
	return &TraceTracker{bar: bar}
}

// Func marks a trace as in progress when an engine starts it.
func (t *TraceTracker) Func(ctx simulation.HookCtx) {
	if ctx.Pos == simulation.HookPosTraceStart {
		t.bar.IncrementInProgress(1)
	}
}

// HandleResult marks a trace as finished. A trace that could not be opened
// never started.
func (t *TraceTracker) HandleResult(r simulation.Result) {
	if r.Unavailable() {
		t.bar.IncrementFinished(1)
		return
	}

	t.bar.MoveInProgressToFinished(1)
}
