// Package middleware exposes net/http guards built on taroAuth.Engine session validation.
//
// # Guards
//
//   - [Guard]: requires a live session; rejects otherwise.
//   - [Optional]: attaches the identity when present; anonymous requests pass.
//   - [RequireAdmin]: runs after Guard and requires the admin flag.
//
// The token is read from the session cookie first and the Authorization: Bearer
// header second (see [TokenFromRequest]).
//
// # What this package must NOT do
//
//   - Access Redis or the identity store (the Engine handles I/O).
//   - Echo internal error detail to the client.
package middleware
