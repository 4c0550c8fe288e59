package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
)

// TestStore_Counters verifies increments and the snapshot copy.
func TestStore_Counters(t *testing.T) {
	t.Parallel()

	s := NewStore()

	require.Equal(t, uint64(1), s.IncFramesProcessed())
	require.Equal(t, uint64(2), s.IncFramesProcessed())
	require.Equal(t, uint64(1), s.IncEyesClosedFrames())

	snapshot := s.Snapshot()
	require.Equal(t, &domain.Stats{FramesProcessed: 2, EyesClosedFrames: 1}, snapshot)

	// Snapshot is detached from the store.
	snapshot.FramesProcessed = 100
	require.Equal(t, uint64(2), s.Snapshot().FramesProcessed)
}

// TestStore_RaiseAlarmIsEdgeGuarded ensures repeated raises count a single event.
func TestStore_RaiseAlarmIsEdgeGuarded(t *testing.T) {
	t.Parallel()

	s := NewStore()

	events, raised := s.RaiseAlarm()
	require.True(t, raised)
	require.Equal(t, uint64(1), events)

	events, raised = s.RaiseAlarm()
	require.False(t, raised)
	require.Equal(t, uint64(1), events)

	require.True(t, s.ClearAlarm())
	require.False(t, s.ClearAlarm())

	events, raised = s.RaiseAlarm()
	require.True(t, raised)
	require.Equal(t, uint64(2), events)
	require.True(t, s.Snapshot().AlarmActive)
}

// TestStore_Reset checks that reset zeroes every field.
func TestStore_Reset(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.IncFramesProcessed()
	s.IncEyesClosedFrames()
	s.RaiseAlarm()

	s.Reset()

	require.Equal(t, new(domain.Stats), s.Snapshot())
}

// TestStore_ConcurrentIncrements runs writers against readers and checks the totals.
func TestStore_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	const (
		writers   = 8
		perWriter = 500
	)

	var (
		s  = NewStore()
		wg sync.WaitGroup
	)

	for range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range perWriter {
				s.IncFramesProcessed()
				s.IncEyesClosedFrames()

				// Closed frames never exceed processed frames in a snapshot
				// because every writer counts the frame first.
				snapshot := s.Snapshot()
				assert.LessOrEqual(t, snapshot.EyesClosedFrames, snapshot.FramesProcessed)
			}
		}()
	}

	wg.Wait()

	snapshot := s.Snapshot()
	require.Equal(t, uint64(writers*perWriter), snapshot.FramesProcessed)
	require.Equal(t, uint64(writers*perWriter), snapshot.EyesClosedFrames)
}
