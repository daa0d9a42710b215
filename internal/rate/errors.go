package rate

import "errors"

var (
	// ErrRateLimited means the key exhausted its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable means the counter could not be read or written.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
