package simulation

// Stats is the outcome of replaying one trace.
type Stats struct {
	Trace   string
	NumSets int

	Hits      uint64
	Misses    uint64
	Malformed uint64

	HitRate      float64
	MissRate     float64
	HitMissRatio float64
}

// Accesses returns the number of records that were counted.
func (s Stats) Accesses() uint64 {
	return s.Hits + s.Misses
}

// Defined reports whether the rates mean anything. A trace without a single
// valid record has all rates set to zero.
func (s Stats) Defined() bool {
	return s.Accesses() > 0
}

// RatioDefined reports whether HitMissRatio means anything.
func (s Stats) RatioDefined() bool {
	return s.Misses > 0
}

func (s *Stats) finalize() {
	s.HitRate, s.MissRate, s.HitMissRatio = 0, 0, 0

	total := s.Accesses()
	if total == 0 {
		return
	}

	s.HitRate = float64(s.Hits) / float64(total)
	s.MissRate = float64(s.Misses) / float64(total)

	if s.Misses > 0 {
		s.HitMissRatio = float64(s.Hits) / float64(s.Misses)
	}
}
