package domain

import "sync"

// Outcome is the lifecycle result of one pipeline pass.
type Outcome string

const (
	OutcomeSkippedSeen Outcome = "skipped_seen"
	OutcomeFiltered    Outcome = "filtered"
	OutcomeIneligible  Outcome = "ineligible"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeDelivered   Outcome = "delivered"
	OutcomeFailed      Outcome = "failed"
)

// Stats counts pipeline outcomes since startup.
type Stats struct {
	mu     sync.Mutex
	counts map[Outcome]int64
}

func (s *Stats) add(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[Outcome]int64)
	}
	s.counts[o]++
}

// Snapshot returns a copy of the current counts.
func (s *Stats) Snapshot() map[Outcome]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Outcome]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
