// Package audit implements async dispatching of login and account audit events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON lines, fan-out, no-op).
//   - [BatchSink]: optional extension receiving every event queued behind the current one.
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: one audit record with user, username, IP, user agent and reason.
//
// The store-backed sink that writes login_logs rows lives in the root package,
// which owns the dependency on the identity store.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import taroAuth or any sibling internal package.
//   - Record credentials or session tokens.
package audit
