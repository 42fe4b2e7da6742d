// Package preflight provides readiness checks for the filesystem paths and
// settings rezip depends on.
//
// The CLI "rezip check" command prints every result; "rezip run" calls RunAll
// before touching any archive and refuses to start when a check fails.
// Checks never create directories, so running them has no side effects.
package preflight
