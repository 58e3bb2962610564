package utils

import (
	"sync"
	"time"
)

// RateGate spaces out interactions with the portal so that automated driving
// does not exceed its load tolerance. It is safe for concurrent use; callers
// from multiple runs share one gate per driver.
type RateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewRateGate creates a gate enforcing at least intervalMs between passes.
// A zero or negative interval disables the gate.
func NewRateGate(intervalMs int) *RateGate {
	return &RateGate{interval: time.Duration(intervalMs) * time.Millisecond}
}

// Wait blocks until the minimum interval since the previous pass has elapsed.
func (g *RateGate) Wait() {
	if g.interval <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	elapsed := time.Since(g.last)
	if elapsed < g.interval {
		time.Sleep(g.interval - elapsed)
	}
	g.last = time.Now()
}

// NameSet is a thread-safe set of names already handed out. The diagnostics
// collector uses it to guarantee artifact names are never reused.
type NameSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewNameSet creates an empty NameSet.
func NewNameSet() *NameSet {
	return &NameSet{seen: make(map[string]struct{})}
}

// Add returns true if the name was newly added, false if already present.
func (s *NameSet) Add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[name]; exists {
		return false
	}
	s.seen[name] = struct{}{}
	return true
}

// Contains returns true if the name has already been handed out.
func (s *NameSet) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[name]
	return exists
}

// Size returns the number of names tracked.
func (s *NameSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
