// Package config owns the podhaul TOML configuration.
//
// Load resolves the config file (explicit flag, default location, or a
// podhaul.toml in the working directory), merges it over the defaults, and
// returns a value whose paths are absolute and whose string fields are
// trimmed and canonicalized. Missing files are not an error; podhaul runs
// on defaults alone. The PODHAUL_NTFY_TOPIC environment variable backfills
// the notification topic when the file leaves it empty.
//
// Downstream packages should not re-expand or re-validate fields; anything
// handed out by Load is ready to use.
package config
