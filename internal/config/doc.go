// Package config defines the monitor settings and provides helpers to load,
// validate and save them in YAML format.
//
// Validate fills defaults for every optional field, so callers can rely on
// thresholds, timeouts and addresses being set after a successful Load.
package config
