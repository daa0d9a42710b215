// Package limiters provides the username lockout guard built on the cache tier's
// atomic increment.
//
// # Limiters
//
//   - [LockoutLimiter]: consecutive failed logins per username, threshold + sliding window.
//
// All methods are nil-safe: calling any method on a nil receiver is a no-op.
//
// # Architecture boundaries
//
// The limiter owns the login_failures key namespace. Policy thresholds come from
// [LockoutConfig] supplied at construction time.
//
// # What this package must NOT do
//
//   - Import taroAuth or any sibling internal package.
//   - Make policy decisions beyond counting: the Engine decides what a lock means for a request.
//   - Implement check-then-act: lock decisions come from the increment's own return value.
package limiters
