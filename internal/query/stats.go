package query

import "sync/atomic"

// Stats counts observable engine events. Tests rely on these to assert
// memoization and early cutoff without poking at internals.
type Stats struct {
	recomputes     atomic.Uint64
	hits           atomic.Uint64
	validations    atomic.Uint64
	cycleIters     atomic.Uint64
	unstableCycles atomic.Uint64
}

// Recomputes returns how many times any compute function actually ran.
func (s *Stats) Recomputes() uint64 { return s.recomputes.Load() }

// Hits returns how many Get calls were served from cache.
func (s *Stats) Hits() uint64 { return s.hits.Load() }

// Validations returns how many cached entries were re-verified lazily.
func (s *Stats) Validations() uint64 { return s.validations.Load() }

// CycleIterations returns the total fixed-point iterations performed.
func (s *Stats) CycleIterations() uint64 { return s.cycleIters.Load() }

// UnstableCycles returns how many cycles hit the iteration bound.
func (s *Stats) UnstableCycles() uint64 { return s.unstableCycles.Load() }
