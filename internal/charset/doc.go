// Package charset turns raw archive entry names into UTF-8 text.
//
// Legacy ZIP writers stored names in whatever code page the authoring
// machine used, without setting the UTF-8 flag. The Resolver runs
// statistical detection over the raw bytes, falls back to a configured
// encoding (Shift_JIS by default) when detection produces nothing, and
// decodes with an ignore policy so malformed sequences are dropped instead
// of aborting the archive.
package charset
