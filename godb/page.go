package godb

import "bytes"

// Page is one in-memory frame managed by the BufferPool: a HeapPage, in
// this engine, but kept as an interface so the buffer pool's eviction and
// WAL logic never need to know the concrete page layout.
type Page interface {
	// getPageId returns this page's identity.
	getPageId() PageId
	// toBuffer serialises the page to exactly PageSize bytes.
	toBuffer() (*bytes.Buffer, error)
	// getFile returns the DBFile this page belongs to.
	getFile() DBFile
	// isDirty reports the transaction that last modified this page, if any.
	isDirty() (TransactionID, bool)
	// setDirty records (or clears) the dirtying transaction.
	setDirty(tid TransactionID, dirty bool)
}

// PageId identifies a page: which table's file it lives in, and its
// offset (in pages) within that file.
type PageId interface {
	TableID() int
	PageNo() int
}

// DBFile is a table's on-disk storage: a sequence of fixed-size pages
// that can be scanned, and individual tuples inserted into or deleted
// from it. HeapFile is the only implementation.
type DBFile interface {
	// readPage loads the page at the given page offset directly from
	// disk, bypassing the buffer pool.
	readPage(pageNo int) (Page, error)
	// insertTuple stores t in the file, choosing a page with free space
	// (or extending the file), and sets t.Rid to the inserted tuple's
	// RecordId.
	insertTuple(t *Tuple, tid TransactionID) error
	// deleteTuple removes the tuple named by t.Rid.
	deleteTuple(t *Tuple, tid TransactionID) error
	// flushPage writes a page back to its offset on disk. It leaves the
	// page's dirty mark as it is; the buffer pool clears that.
	flushPage(page Page) error
	// Descriptor returns the file's schema.
	Descriptor() *TupleDesc
	// Iterator returns a function that yields one tuple per call, nil,
	// nil at end of file.
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
	// NumPages returns the current length of the file, in pages.
	NumPages() int
	// TableID returns the stable id this file is registered under.
	TableID() int
}
