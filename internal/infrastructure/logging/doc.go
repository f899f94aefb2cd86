// Package logging provides structured logging for the MQTT helper.
//
// This package wraps go.uber.org/zap behind a small key/value API so that
// every component logs the same way.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Console output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, console (text is an alias)
//	  output: "stdout"   # stdout, stderr, or a file path
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("connected", "broker", "tcp://localhost:1883")
//	logger.Error("subscribe failed", "topic", topic, "error", err)
//
// # Security
//
// Never log broker passwords, tokens or private key material.
package logging
