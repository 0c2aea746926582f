package godb

import "sync/atomic"

// TransactionID tags every page access and log record with the logical
// transaction that made it. It is opaque to everything but the buffer pool
// and lock manager.
type TransactionID int64

var tidCounter int64

// NewTID allocates a fresh, process-unique TransactionID. Safe to call
// concurrently from multiple goroutines.
func NewTID() TransactionID {
	return TransactionID(atomic.AddInt64(&tidCounter, 1))
}
