// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console or JSON encoder and an atomic level,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level and format parsing for the configuration file and CLI flags,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// The frame loop, session control and background tasks take a context and
// extract the logger from it, so every line carries the session id.
package logger
