// Package httpapi mounts the taroAuth engine on a chi router.
//
// Every response body is a [directive.Envelope]. Handlers attach at most one
// directive, chosen per endpoint: Navigate after login, register and guest
// login, MergeState{user} for the current user and profile updates,
// ClearState{user} on logout and Notify for failures and data writes.
//
// The session token travels in an HttpOnly cookie. Clients that cannot keep
// cookies send it as Authorization: Bearer instead.
package httpapi
