// Package ui renders the photorelay CLI output with Lipgloss.
//
// Components follow a "print once and exit" pattern:
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, failure or warning box with ordered details
//   - Table: aligned columns, used by the scan command
//
// When stdout is not a terminal every component renders plain lines without
// borders or colours, so output can be piped or parsed.
//
// # Logging Integration
//
// zap logging stays silent unless PHOTORELAY_LOG_LEVEL or --log-level is set,
// which keeps client command output clean.
package ui
