// Package logging assembles the structured slog loggers used across podhaul.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes standardized field names so every component tags log
// lines with the same keys for run IDs, episode keys, and listing pages. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape and routing as the rest of the system.
package logging
