// Package fetch streams media files to disk with byte-range resume.
//
// Transfers write to a .part sibling of the destination and rename it into
// place only on completion, so an interrupted run leaves a partial that the
// next run continues with a Range request. Servers that ignore or reject
// ranges trigger a restart from zero rather than a corrupt concatenation.
// Failures are split into transport errors, which keep the partial for a
// later resume, and filesystem errors, which the caller can inspect for
// name-too-long conditions and retry with a shorter name.
package fetch
