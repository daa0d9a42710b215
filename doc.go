// Package taroAuth provides the session authentication engine behind a
// multi-platform mini-program backend: username/password and guest login,
// opaque server-side sessions, a Redis read-through cache in front of a
// relational identity store, and a per-username lockout guard.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// taroAuth is the public surface. It exposes [Engine], [Builder], [Config] and
// the value types handed to the HTTP layer ([LoginResult], [User], [UserData]).
// Cache keys, lockout counting, audit dispatch and expiry reaping live in
// sub-packages and under internal/.
//
// Responses carry at most one client directive (see package directive). The
// Engine only decides which route a directive points at; the HTTP layer
// attaches it.
//
// # Failure semantics
//
// A cache failure is never returned to callers: reads fall through to the
// store and the lockout guard fails open. A store failure is returned as
// [ErrStoreUnavailable].
//
// # What this package must NOT do
//
//   - Expose Redis clients or cache key layout in its public API.
//   - Log session tokens or passwords.
//   - Import httpapi or middleware (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path. With a warm cache it costs two Redis GETs and
// no store reads.
package taroAuth
