// Package archive reads legacy zip containers into a staging directory and
// packs a staging directory back into a canonical zip.
//
// Extraction runs in two phases. Every entry name is first decoded through a
// charset.Resolver and checked by pathsafe; any failure there rejects the
// whole archive before a single byte is written. The second phase copies
// entry bodies on a bounded worker pool. Entry metadata is enumerated once up
// front and each worker opens its own section reader, so workers never share
// a cursor. Per-entry I/O failures are collected and logged without stopping
// sibling entries.
//
// Packing walks the staging tree in lexical order, consults a Filter for
// every path, and writes Stored records with mode 0644 into a destination
// that must not already exist.
package archive
