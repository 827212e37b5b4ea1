// Package state holds the process-wide mutable state shared by concurrent
// requests: dispatch statistics and the classifier's repeat memory.
package state

import "sync"

// Snapshot is a consistent copy of the statistics.
type Snapshot struct {
	TotalRequests     int64            `json:"totalRequests"`
	SuccessfulActions int64            `json:"successfulActions"`
	FailedActions     int64            `json:"failedActions"`
	PerIntent         map[string]int64 `json:"perIntent"`
}

// Stats counts dispatched requests. Completed requests never exceed begun
// ones, and per-intent counters sum to the completed count.
type Stats struct {
	mu         sync.Mutex
	total      int64
	successful int64
	failed     int64
	perIntent  map[string]int64
	generation uint64
}

// Ticket identifies a request counted by Begin. Tickets issued before a Reset
// are ignored by Complete.
type Ticket struct {
	generation uint64
}

func NewStats() *Stats {
	return &Stats{perIntent: make(map[string]int64)}
}

// Begin counts a request entering the dispatcher.
func (s *Stats) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	return Ticket{generation: s.generation}
}

// Complete records the outcome of the request holding t. An empty intent is
// counted as "unknown". Completions from before the last Reset are dropped.
func (s *Stats) Complete(t Ticket, intent string, success bool) {
	if intent == "" {
		intent = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.generation != s.generation {
		return
	}
	if success {
		s.successful++
	} else {
		s.failed++
	}
	s.perIntent[intent]++
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	per := make(map[string]int64, len(s.perIntent))
	for k, v := range s.perIntent {
		per[k] = v
	}
	return Snapshot{
		TotalRequests:     s.total,
		SuccessfulActions: s.successful,
		FailedActions:     s.failed,
		PerIntent:         per,
	}
}

// Reset zeroes every counter. Requests in flight at the reset are not
// counted when they complete.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.total, s.successful, s.failed = 0, 0, 0
	s.perIntent = make(map[string]int64)
}
