// Package server assembles the drowsiness monitor into an HTTP process.
//
// Run loads the settings and the vision backend, wires the statistics store,
// the SOS dispatcher, the event publisher and the frame broadcaster around a
// monitor, and serves the API until the context is canceled.
package server
