// Package main implements the podhaul command-line interface.
//
// Every subcommand resolves the TOML config once, builds the shared logger,
// and then drives the internal packages: scan and download runs, ledger
// queries, retrying failed episodes, RSS export, and config scaffolding.
// Command files stay thin; behavior lives under internal/ and is surfaced
// here through flags.
package main
