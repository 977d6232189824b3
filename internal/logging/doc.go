// Package logging configures slog output for the daemon and CLI.
//
// It provides console and JSON handlers, attribute helper constructors, a
// no-op logger for tests, and a ProgressSampler that keeps render progress
// from flooding the log while preserving stage changes.
package logging
