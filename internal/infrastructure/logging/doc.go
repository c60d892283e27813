// Package logging provides structured logging for the RustFS launcher.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields.
//
// # Features
//
//   - Text output by default (desktop use), JSON for log collectors
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("listening", "port", 7000)
//	logger.Error("launch failed", "error", err)
//
// # Security
//
// Never log the RustFS secret key. The launcher logs the argument vector
// with the secret redacted.
package logging
