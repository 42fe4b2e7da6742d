// Package main hosts the rezip CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, sets up structured
// logging and hands the real work to the internal packages: run rebuilds
// every archive below a root, inspect previews how entry names decode,
// history reads the SQLite ledger, and staging/config/check cover
// maintenance. Keep this package lean; new behaviour belongs in internal/
// first and is surfaced here afterwards.
package main
