package cache

import "errors"

// ErrNotFound is returned by Update when the key is not cached.
var ErrNotFound = errors.New("cache: key not found")
