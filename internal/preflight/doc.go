// Package preflight provides readiness checks for the filesystem paths and
// external tools a download run depends on.
//
// The checks run in two contexts:
//   - The run, download, and links commands call Check before taking the
//     run lock, so a full disk or a missing binary fails fast instead of
//     halfway through a batch.
//   - The "podhaul status" command renders RunAll results to show degraded
//     state without starting a run.
//
// All checks are local. Upstream reachability is not probed here; transport
// failures during a run are per-episode outcomes, not startup errors.
package preflight
