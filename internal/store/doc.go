// Package store keeps a SQLite history of suite runs.
//
// Each run gets a UUIDv7 id and a sequence number; each case result gets an
// xid and its position within the run. All listing queries order by seq, so
// history reads back in execution order regardless of clock changes.
//
// A run row is written when the run begins and its counts are filled in
// when it finishes. A run whose finished flag is still zero was interrupted.
package store
