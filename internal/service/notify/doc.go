// Package notify implements the one-time SOS notification of a session.
//
// The Dispatcher guards the recipient and the sent flag with one mutex that is
// independent of the session statistics. A rising edge calls Notify, which
// claims the gate with a single compare-and-set and hands delivery to the
// worker pool. A failed delivery re-opens the gate so that a later rising edge
// can try again; nothing is retried on a timer.
package notify
