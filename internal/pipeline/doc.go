// Package pipeline wires extraction, transformation and packing into the
// per-archive workflow and runs it over many archives.
//
// Process owns one staging area per archive and releases it on every exit
// path. Runner fans archives out to a bounded worker pool, records each
// outcome in the history ledger and never lets one failure cancel its
// siblings.
package pipeline
