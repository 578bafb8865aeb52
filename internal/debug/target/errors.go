package target

import "errors"

// ErrNotRegistered is returned when clearing a breakpoint the target does
// not know about.
var ErrNotRegistered = errors.New("not registered with this target")
