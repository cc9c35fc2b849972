// Package database provides SQLite-based run history for pageweight.
//
// RunDB stores:
//   - every audit report as JSON, with its headline numbers in columns
//   - the weight of every sampled page, so one URL can be followed
//     across runs
//
// The database is a single file (modernc.org/sqlite, no cgo) opened in
// WAL mode.
package database
