package httpx

import "sync/atomic"

var lastClientID atomic.Uint64

// nextClientID returns a process-unique, non-zero client id.
func nextClientID() uint64 { return lastClientID.Add(1) }
