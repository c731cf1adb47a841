package guard

import "github.com/petermattis/goid"

// GoroutineID returns the runtime id of the calling goroutine.
func GoroutineID() int64 { return goid.Get() }
