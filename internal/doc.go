// Package internal contains helpers that are private to taroAuth, mostly
// secure random generation for session tokens and guest handles.
//
// # Sub-packages
//
//   - audit: async login-audit dispatch (Dispatcher + Sink implementations)
//   - limiters: the username lockout guard built on the cache tier
//   - rate: the fixed-window per-IP signup throttle
//   - reaper: bounded async deletion of expired sessions
//
// # What this package must NOT do
//
//   - Export types that appear in the public taroAuth API.
//   - Be imported by any package outside the taroAuth module.
package internal
