// Package faults defines the error taxonomy shared by every pipeline stage.
//
// Each failure observed at a library boundary (zip container, charset
// decoder, filesystem) is tagged with one of the exported markers through
// Wrap, so callers can classify it with errors.Is and the history ledger can
// persist a stable kind string via KindOf. The markers separate structural
// failures that abort an archive from per-item failures that are logged and
// skipped.
package faults
