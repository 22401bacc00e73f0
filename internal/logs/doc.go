// Package logs reads the podhaul log file back for the logs command.
//
// The logger appends console-formatted lines to a single file under the log
// directory; this package tails that file, optionally following appends the
// way tail -f does. A missing file is treated as empty so the command works
// before the first run.
package logs
