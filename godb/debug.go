package godb

import (
	"log"
	"os"
)

// Debug gates DPrintf's output. It is read once at process start from the
// GODB_DEBUG environment variable so test runs stay quiet by default; set
// GODB_DEBUG=1 to see the buffer pool and WAL chatter.
var Debug = os.Getenv("GODB_DEBUG") != ""

// DPrintf logs like log.Printf, but only when Debug is enabled. Every
// package file that needs to trace internal decisions (lock waits,
// eviction choices, WAL replay) calls through here rather than log.Printf
// directly.
func DPrintf(format string, a ...any) {
	if Debug {
		log.Printf(format, a...)
	}
}
