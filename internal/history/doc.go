// Package history persists one row per processed archive in a SQLite
// ledger so `rezip history` can report what earlier runs produced.
//
// The store uses WAL journaling with a busy timeout and retries writes that
// hit SQLITE_BUSY, which lets concurrent archive workers record outcomes
// through a single *sql.DB.
package history
