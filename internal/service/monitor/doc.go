// Package monitor runs drowsiness detection sessions.
//
// A session owns one capture source and one frame loop goroutine. Each frame
// is counted, searched for the first face and its eyes, classified and fed
// to the alert state machine. Rising edges of the alarm raise the event
// counter and hand off to the SOS notifier and the event publisher; neither
// blocks the loop.
//
// Detector and classifier failures skip the frame by default: the frame is
// counted, the alert state is left untouched and the frame is streamed
// without overlay. With AbortOnInferenceError the session ends instead.
package monitor
