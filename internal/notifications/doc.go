// Package notifications reports run progress to an ntfy topic.
//
// NewService hands back a silent implementation when no topic is configured,
// so callers fire events unconditionally. Run summaries and per-episode
// failure pushes are toggled independently in the config: an archive with
// many dead episodes can keep its completion ping without a notification for
// every miss.
package notifications
