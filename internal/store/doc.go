// Package store provides the persistent key-value adapter used by the
// session and preference containers.
//
// Two implementations satisfy KV:
//   - Store: SQLite file, survives process restarts
//   - Memory: map-backed, for tests and ephemeral runs
//
// Values are plain strings. Callers that need structure (the session's
// user record) serialize to JSON before calling Set.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - user_version tracks the schema; newer databases are refused
package store
