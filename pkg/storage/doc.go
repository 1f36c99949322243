// Package storage defines the keyed storage contract behind persistent
// observable values, and ships the backends that implement it.
//
// A Store maps string keys to opaque serialized values. Callers serialize
// before Set and deserialize after Get; a Store never interprets the bytes.
//
// Backends:
//
//   - MemoryStore: process-local map, for tests and ephemeral state.
//   - BoltStore: single-file bbolt database, the default durable backend.
//   - SQLStore: any database/sql database (SQLite, PostgreSQL, MySQL).
//   - S3Store: one object per key in an S3-compatible bucket.
//
// SealedStore wraps any of them with authenticated encryption and is the
// SecureStore accepted by memval.NewSecureStored. Instrument adds
// OpenTelemetry spans and Prometheus timings to any Store.
package storage
