// Package cache keeps the line metadata of a set-associative cache and
// applies the replacement policy.
package cache

import (
	"github.com/sarchlab/cachesim/geometry"
)

// A Line is the metadata associated with one way of one set.
type Line struct {
	Tag   uint32
	Valid bool

	// Recency is 0 for the most recently used line and grows with age.
	Recency uint64
}

// An Eviction describes the line chosen to receive a missed block.
type Eviction struct {
	Way int

	// Victim is the line as it was before being overwritten.
	Victim Line
}

// Evicted reports whether a valid block was thrown out.
func (e Eviction) Evicted() bool {
	return e.Victim.Valid
}

// TagArray stores the lines of every set in a flat slice indexed by
// way*numSets+set.
type TagArray struct {
	NumSets int
	NumWays int

	lines        []Line
	victimFinder VictimFinder
}

// NewTagArray returns a tag array sized by the geometry with every line
// invalid.
func NewTagArray(g geometry.Geometry, victimFinder VictimFinder) *TagArray {
	if victimFinder == nil {
		victimFinder = NewLRUVictimFinder()
	}

	t := &TagArray{
		NumSets:      g.NumSets(),
		NumWays:      g.Ways(),
		victimFinder: victimFinder,
	}

	t.Reset()

	return t
}

// Reset marks every line invalid and clears the recency counters.
func (t *TagArray) Reset() {
	n := t.NumSets * t.NumWays
	if len(t.lines) != n {
		t.lines = make([]Line, n)
		return
	}

	clear(t.lines)
}

// Line returns a copy of the line at the given way and set.
func (t *TagArray) Line(way int, index uint32) Line {
	return t.lines[t.pos(way, index)]
}

// Set returns a copy of the lines of one set, ordered by way.
func (t *TagArray) Set(index uint32) []Line {
	set := make([]Line, t.NumWays)
	for way := range set {
		set[way] = t.lines[t.pos(way, index)]
	}

	return set
}

// Lookup finds the way in the set holding a valid line with the tag.
func (t *TagArray) Lookup(index, tag uint32) (way int, hit bool) {
	for way := 0; way < t.NumWays; way++ {
		line := &t.lines[t.pos(way, index)]
		if line.Valid && line.Tag == tag {
			return way, true
		}
	}

	return -1, false
}

// RecordHit marks the line as the most recently used one of its set.
func (t *TagArray) RecordHit(index uint32, way int) {
	t.touch(index, way)
}

// RecordMiss places the tag into the victim line of the set and marks it as
// the most recently used one.
func (t *TagArray) RecordMiss(index, tag uint32) Eviction {
	way := t.victimFinder.FindVictim(t, index)
	pos := t.pos(way, index)

	eviction := Eviction{Way: way, Victim: t.lines[pos]}

	t.lines[pos].Tag = tag
	t.lines[pos].Valid = true
	t.touch(index, way)

	return eviction
}

// touch resets the recency of one line and ages every other line of the
// set, valid or not.
func (t *TagArray) touch(index uint32, way int) {
	for w := 0; w < t.NumWays; w++ {
		line := &t.lines[t.pos(w, index)]
		if w == way {
			line.Recency = 0
			continue
		}

		line.Recency++
	}
}

func (t *TagArray) pos(way int, index uint32) int {
	if way < 0 || way >= t.NumWays || int(index) >= t.NumSets {
		panic("cache: line position out of range")
	}

	return way*t.NumSets + int(index)
}
