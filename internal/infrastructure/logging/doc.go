// Package logging provides structured logging for sitedb.
//
// This package wraps Go's standard log/slog package with:
//
//   - JSON output by default, text output for terminals
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - stderr as the default destination, leaving stdout to command output
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stderr, stdout, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("database connected", "driver", "mysql")
//
// Never log bound statement values; they may carry user data.
package logging
