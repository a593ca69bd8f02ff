// Package logging provides structured logging for the photorelay server.
//
// This package wraps zap logger with package-level convenience functions so
// every component logs through the same configured instance.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Frame contents, hex dumps of binary frames, store internals
//   - Info: Connections, uploads, downloads, lifecycle events
//   - Warn: Malformed client messages, lookup misses
//   - Error: Transport and storage failures
//
// # Sinks
//
// Two sinks can be active at the same time:
//
// Console (stdout), human-readable and colourised:
//
//	2025-11-25T10:30:45.123+0000  INFO  server/session.go:88  New connection  {"session_id": "..."}
//
// Log file, append-only with one timestamped line per event. Rotation is
// left to external tooling (logrotate with copytruncate):
//
//	[2025-11-25 10:30:45] | New connection | {"session_id": "..."}
//
// # Configuration
//
//	if err := logging.InitializeWithOptions(logging.Options{
//	    Level: "info",
//	    File:  "/var/log/photorelay/photorelay.log",
//	}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// When no level is given and PHOTORELAY_LOG_LEVEL is unset, logging is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
