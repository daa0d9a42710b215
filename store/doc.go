// Package store is the durable Identity Store: users, user_sessions,
// login_logs and user_data behind gorm.
//
// Two drivers are supported. "sqlite" runs on the pure-Go modernc engine and is
// what tests and local development use. "postgres" is for deployments.
//
// Every method returns one of three sentinel classes: [ErrNotFound],
// [ErrConflict] (unique constraint), or [ErrUnavailable] wrapping the backend
// error. Callers branch with errors.Is and never inspect driver errors.
//
// # What this package must NOT do
//
//   - Cache anything. The cache tier sits in front of it.
//   - Hash or verify passwords.
package store
