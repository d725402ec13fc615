// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"process": "debug",  // Per-module overrides
//			"api":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("converter").With("request_id", id)
//	logger.Info("Conversion started")  // Includes request_id in all logs
//
// Hand a request-scoped logger to code in other packages through the context:
//
//	ctx = logging.WithLogger(ctx, logger)
//	logging.FromContext(ctx, fallback).Info("WORKER: Loading page")
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal available + stdout available → MultiHandler (both)
//	Journal available only              → JournalHandler
//	Stdout available only               → TextHandler or JSONHandler
//
// Every chain also carries a BufferHandler. It keeps the last entries in a
// RingBuffer (see GetBuffer), numbered so readers can resume with
// ReadSince, and forwards each one to the LogCallback that streams logs to
// SSE clients.
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t pdfnode              # All pdfnode logs
//	journalctl -t pdfnode -f           # Follow live
//	journalctl -t pdfnode --since "5m" # Last 5 minutes
//	journalctl -t pdfnode -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t pdfnode PDFNODE_MODULE=pool
//	journalctl -t pdfnode WORKER_ID=3
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only. SetLevels applies new
// levels to loggers already handed out, which is how a config file reload
// takes effect without a restart.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	pool = "debug"
//	api = "warn"
package logging
