// Package session implements the Session Manager: opaque session tokens
// persisted in the Identity Store and written through to the cache tier.
//
// # Validation
//
// [Manager.Validate] reads the cache first and falls back to the store on a
// miss or cache failure, repopulating the cache afterwards. Concurrent misses
// for one token share a single store read. Whichever path served the session,
// the stored absolute expiry is re-checked: a session with expiry T is valid
// for every check before T and invalid from T on.
//
// Expired sessions read as [ErrInvalid] and are handed to a bounded background
// queue for deletion; the read path never deletes inline. [Manager.RunSweeper]
// removes whatever the queue missed.
//
// # Failure semantics
//
// A store failure during validation is fatal for that call ([ErrStoreUnavailable]).
// A cache failure is invisible to callers.
//
// # What this package must NOT do
//
//   - Import taroAuth (no upward imports).
//   - Load users or make authorization decisions.
//   - Log session tokens.
package session
