package valkey

import "errors"

// ErrMiss is returned by Get for a key that is not cached.
var ErrMiss = errors.New("cache miss")
