// Package drowsiness contains core domain types for drowsiness detection.
//
// It defines eye-state labels, the per-session statistics snapshot, the
// alert state enumeration, the monitoring station identity and the immutable
// SOS message built when the event threshold is reached.
package drowsiness
