// Package logging provides structured logging for the kwbreg tools.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the register resolution engine. Logging is silent by
// default so CLI output stays clean; set KWBREG_LOG_LEVEL to enable it.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (cache hits, skipped duplicate registers)
//   - Info: Normal operations (config loads, version resolution, reloads)
//   - Warn: Non-fatal issues (unknown device types, language fallbacks)
//   - Error: Fatal issues (missing universal register file, malformed JSON)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Detected software version",
//	    zap.String("version", "22.7.1"),
//	    zap.Int("register", 8192),
//	)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
