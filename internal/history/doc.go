// Package history persists published control-loop ticks.
//
// Every published tick (sequence number, timestamp, JSON-encoded output) is
// appended to a WAL-mode SQLite database. The store prunes rows past the
// configured retention on a cron schedule so long-running loops don't grow
// the file without bound.
//
// The store is a consumer of the loop, never part of it: it is fed from the
// event bus (or an output trigger) on its own goroutine and must not be
// called from task code.
package history
