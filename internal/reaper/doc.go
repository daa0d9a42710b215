// Package reaper implements the bounded background queue that deletes expired
// sessions discovered on the validate path.
//
// A read that finds an expired session must not turn into a synchronous write,
// so the Session Manager hands the token to [Queue.Enqueue] and returns Invalid
// immediately. With DropIfFull the queue never blocks the caller. Dropped
// tokens are picked up later by the scheduled sweep.
//
// # What this package must NOT do
//
//   - Import taroAuth, session, or store.
//   - Decide whether a session is expired. It deletes what it is given.
package reaper
