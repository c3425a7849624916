// Package store provides the durable pattern repository backed by SQLite.
//
// The store owns the schema invariants: pattern names are unique,
// applications are append-only, and the derived statistics on a pattern
// (success_rate, usage_count) are recomputed from the application log inside
// the same transaction that appends to it. Callers never write pattern
// fields directly.
//
// The driver is modernc.org/sqlite (pure Go, no cgo), so the store is an
// embedded dependency with explicit Open/Close lifecycle. SQLite serializes
// writers, which satisfies the per-pattern ordering requirement for outcome
// recording: two concurrent recomputations of the same pattern's statistics
// cannot interleave.
package store
