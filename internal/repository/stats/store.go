package stats

import (
	"sync"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
)

// Repository defines the guarded operations on session statistics.
type Repository interface {
	Snapshot() *domain.Stats
	Reset()
	IncFramesProcessed() uint64
	IncEyesClosedFrames() uint64
	RaiseAlarm() (events uint64, raised bool)
	ClearAlarm() (wasActive bool)
}

// Store keeps the statistics of the current session in memory.
type Store struct {
	// stats holds the live counters.
	stats domain.Stats
	// mu protects concurrent access to stats.
	mu sync.RWMutex
}

// NewStore creates a store with all counters at zero.
func NewStore() *Store {
	return new(Store)
}

// Snapshot returns a consistent copy of all counters.
func (s *Store) Snapshot() *domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stats.Clone()
}

// Reset sets all counters to zero and clears the alarm flag.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = domain.Stats{}
}

// IncFramesProcessed counts one processed frame and returns the new total.
func (s *Store) IncFramesProcessed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.FramesProcessed++

	return s.stats.FramesProcessed
}

// IncEyesClosedFrames counts one closed-eye frame and returns the new total.
func (s *Store) IncEyesClosedFrames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.EyesClosedFrames++

	return s.stats.EyesClosedFrames
}

// RaiseAlarm records a drowsiness event and sets the alarm flag in one step.
// If the alarm is already active nothing changes and raised is false.
func (s *Store) RaiseAlarm() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stats.AlarmActive {
		return s.stats.DrowsinessEvents, false
	}

	s.stats.AlarmActive = true
	s.stats.DrowsinessEvents++

	return s.stats.DrowsinessEvents, true
}

// ClearAlarm resets the alarm flag and reports whether it was set.
func (s *Store) ClearAlarm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := s.stats.AlarmActive
	s.stats.AlarmActive = false

	return wasActive
}
