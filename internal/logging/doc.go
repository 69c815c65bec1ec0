// Package logging provides structured logging for the wifiled daemon and client.
//
// This package wraps zap logger with convenience functions for common logging
// patterns. It provides both general logging functions and specialized
// functions for connectivity and HTTP logging.
//
// # Log Levels
//
//   - Debug: request/response details, raw bytes, poll iterations
//   - Info: state transitions, connection events, LED changes
//   - Warn: connect failures, link loss, dropped connections
//   - Error: unexpected failures
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to WIFILED_LOG_LEVEL. When both are empty the
// logger is a no-op, which keeps CLI output clean.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are meant to be called once, before any goroutines log.
package logging
