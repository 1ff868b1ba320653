// Package applog is a thin wrapper around the standard logger, matching
// the env-gated debug flags the teacher's API client uses
// (LINEARFS_DEBUG_API, LINEARFS_DEBUG_RATE) but scoped to this reader's
// components.
package applog

import (
	"log"
	"os"
)

var (
	debugSnapshot = os.Getenv("LINEAR_READER_DEBUG_SNAPSHOT") != ""
	debugRemote   = os.Getenv("LINEAR_READER_DEBUG_REMOTE") != ""
	debugRouter   = os.Getenv("LINEAR_READER_DEBUG_ROUTER") != ""
)

// Snapshot logs a snapshot-loader debug line when LINEAR_READER_DEBUG_SNAPSHOT is set.
func Snapshot(format string, args ...any) {
	if debugSnapshot {
		log.Printf("[snapshot] "+format, args...)
	}
}

// Remote logs a remote-session debug line when LINEAR_READER_DEBUG_REMOTE is set.
func Remote(format string, args ...any) {
	if debugRemote {
		log.Printf("[remote] "+format, args...)
	}
}

// Router logs a router debug line when LINEAR_READER_DEBUG_ROUTER is set.
func Router(format string, args ...any) {
	if debugRouter {
		log.Printf("[router] "+format, args...)
	}
}

// Errorf always logs, regardless of debug flags: for failures an operator
// needs to see no matter what.
func Errorf(format string, args ...any) {
	log.Printf("[error] "+format, args...)
}
