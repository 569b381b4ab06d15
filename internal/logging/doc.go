// Package logging provides a simple leveled logging interface for the
// media indexer.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// Messages are written through zerolog: a human-readable console writer on
// stderr and, optionally, a size-rotated log file managed by lumberjack.
//
// The level comes from the configuration file and can be overridden with the
// LOG_LEVEL or DEBUG environment variables.
package logging
