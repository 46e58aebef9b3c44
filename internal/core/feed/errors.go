package feed

import "errors"

// ErrNotFound is returned when a Post or URL lookup finds nothing.
var ErrNotFound = errors.New("not found")
