// Package storage is the durable key/value layer behind the lifecycle
// controller.
//
// Values are opaque bytes (the controller stores JSON). Drivers:
//   - memory:   process-local map, for tests and dry runs
//   - file:     snapshot + append-only journal, compacted periodically
//   - sqlite:   single table in a SQLite file (modernc.org/sqlite)
//   - diskv:    one file per key (peterbourgon/diskv)
//   - postgres: single table through a pgx pool
package storage
