package sync

import "log"

// Verbose enables walk tracing. Off by default; the engine stays silent in
// steady state.
var Verbose = false

func debugf(format string, args ...interface{}) {
	if Verbose {
		log.Printf("[sync] "+format, args...)
	}
}
