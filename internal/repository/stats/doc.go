// Package stats implements the thread-safe store for session statistics.
//
// The Store keeps the counters of the current detection session in memory and
// exposes a Repository interface that the monitor service depends on. Every
// logical operation runs in a single critical section, and Snapshot returns a
// consistent copy.
package stats
