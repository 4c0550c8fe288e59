// Package metrics registers the Prometheus collectors of the monitor.
//
// Collectors are registered on the default registry at init and exposed by
// the HTTP API on /metrics. The Record* helpers keep label values consistent
// across the frame loop, the notification dispatcher and the worker pool.
package metrics
