// Package pipeline orchestrates scan and download runs.
//
// A Runner owns the single-instance run lock, the politeness pacer, and the
// wiring between ledger, site source, resolver, and fetcher. Runs are
// single-threaded on purpose: one listing fetch or one media transfer in
// flight at a time, so the archive origin never sees more than one polite
// client.
//
// Failures are classified into the error classes in errors.go. Enumeration
// failures abort a run because page numbering is the only navigation;
// per-episode failures mark the episode and let the run continue.
package pipeline
