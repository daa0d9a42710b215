// Package cache implements the Redis cache tier that fronts the identity store.
//
// Keys are "<prefix>:<category>:<id>" (see [Keys]); each entity class has a fixed
// TTL (see [TTLs]). Values are JSON encoded with sonic.
//
// # Failure contract
//
// [Tier.Get], [Tier.Set], [Tier.Delete], [Tier.Count] and [Tier.TTL] never return
// errors: a backend failure is logged, reported through [Hooks.OnError], and looks
// like a miss to the caller. [Tier.Increment] surfaces [ErrUnavailable] because the
// lockout guard has to know the count was not recorded.
//
// # What this package must NOT do
//
//   - Import taroAuth, session, or store (no upward imports).
//   - Decide what to do on a miss. Callers own the store fallback.
package cache
