package cache

// A VictimFinder decides which way of a set receives a missed block.
type VictimFinder interface {
	FindVictim(tags *TagArray, index uint32) (way int)
}

// LRUVictimFinder evicts the least recently used line.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return new(LRUVictimFinder)
}

// FindVictim returns the way with the strictly largest recency. Ties go to
// the lowest way. Invalid lines are never younger than valid ones, so empty
// ways fill before anything is evicted.
func (e *LRUVictimFinder) FindVictim(tags *TagArray, index uint32) int {
	victim := 0
	oldest := tags.Line(0, index).Recency

	for way := 1; way < tags.NumWays; way++ {
		recency := tags.Line(way, index).Recency
		if recency > oldest {
			oldest = recency
			victim = way
		}
	}

	return victim
}
