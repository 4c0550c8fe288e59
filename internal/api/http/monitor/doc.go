// Package monitor implements the HTTP transport for the drowsiness monitor.
//
// It exposes session control, statistics, SOS recipient configuration, the
// MJPEG video feed, Prometheus metrics and the static web page. Handlers
// translate JSON to calls on the provided service interfaces and never hold
// state of their own.
package monitor
