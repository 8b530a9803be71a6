// Package logging constructs slog loggers with console and JSON handlers,
// and defines the standardized structured field names used across Slicer.
package logging
