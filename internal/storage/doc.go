// Package storage provides the durable key-value store that console sessions
// persist into.
//
// # Model
//
// Storage mirrors the browser's origin-scoped persistent storage: string keys,
// string values, and reads of missing keys report ok == false rather than an
// error. Every session profile writes a handful of fixed keys (see the session
// package) and nothing else touches them.
//
// # Backends
//
//   - MemoryStorage: a mutex-guarded map. Used by tests and the "memory" driver.
//   - SQLiteStorage: a single kv table in SQLite (modernc.org/sqlite), scoped by
//     namespace. The namespace plays the role of the browser origin.
//   - Sealed: wraps any Storage and encrypts values at rest with
//     XChaCha20-Poly1305. Keys stay in plaintext.
//
// # Change Notifications
//
// A Hub fans out Events to subscribers. Observed is a per-tab view over a
// shared Storage and Hub: writes through one view are published to every
// other view and never back to the writer, the same way a browser raises
// "storage" events only in the other tabs of an origin.
//
//	hub := storage.NewHub(logger)
//	tabA := storage.NewObserved(shared, hub)
//	tabB := storage.NewObserved(shared, hub)
//	events := tabB.Watch(ctx)
//	_ = tabA.Set(ctx, "admin_access_token", "tok1") // delivered on events
//
// A Hub only reaches views in the same process. Poller produces the same
// Events for writers in other processes by reading a fixed key set on an
// interval.
//
// # Errors
//
// Failures of the underlying medium (disk, database, decryption) are wrapped
// with ErrUnavailable. Callers in the session layer recover from it and keep
// operating in memory.
package storage
