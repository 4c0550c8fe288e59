// Package version exposes build metadata of the drowsiness monitor.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Short and Full render the version for CLI output and logs; Current returns
// it for the HTTP status endpoint.
package version
