// Package rate provides a Redis-backed fixed-window counter.
//
// # Window semantics
//
// INCR, then EXPIRE only on the first hit of a window. Unlike the lockout
// guard in internal/limiters, later hits do not extend the window.
//
// # What this package must NOT do
//
//   - Decide policy (callers choose keys, limits and what to do on a Redis error).
//   - Be imported outside the taroAuth module.
package rate
