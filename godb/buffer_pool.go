package godb

import (
	"sync"
	"time"
)

// BufferPool is the bounded, shared cache of on-disk pages that mediates
// every page access under a transaction id. It owns the lock table
// described in lock_manager.go and enforces NO STEAL: a dirty page is
// never written before its transaction commits and never evicted.
type BufferPool struct {
	mu       sync.Mutex
	capacity int
	frames   map[PageId]Page
	lm       *lockManager
	logFile  *LogFile
	files    map[int]DBFile
}

// NewBufferPool creates a BufferPool holding at most numPages resident
// frames.
func NewBufferPool(numPages int) (*BufferPool, error) {
	return &BufferPool{
		capacity: numPages,
		frames:   make(map[PageId]Page),
		lm:       newLockManager(),
		files:    make(map[int]DBFile),
	}, nil
}

// registerFile makes f's pages resolvable from a PageId on a cache miss.
// HeapFile calls this from NewHeapFile.
func (bp *BufferPool) registerFile(f DBFile) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.files[f.TableID()] = f
}

// GetPage acquires the requested lock on pid (retrying for up to
// LockTimeout), then returns the resident page, loading and caching it
// from disk first if necessary.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageId, perm RWPerm) (Page, error) {
	deadline := time.Now().Add(LockTimeout)
	for !bp.lm.lock(pid, tid, perm) {
		if time.Now().After(deadline) {
			return nil, ErrTransactionAborted
		}
		time.Sleep(5 * time.Millisecond)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if pg, ok := bp.frames[pid]; ok {
		return pg, nil
	}

	if len(bp.frames) >= bp.capacity {
		if err := bp.evictPageLocked(); err != nil {
			return nil, err
		}
	}

	file, ok := bp.files[pid.TableID()]
	if !ok {
		return nil, GoDBError{TupleNotFoundError, "no file registered for table id"}
	}
	pg, err := file.readPage(pid.PageNo())
	if err != nil {
		return nil, err
	}
	if hp, ok := pg.(*heapPage); ok {
		hp.setBeforeImage()
	}
	bp.frames[pid] = pg
	return pg, nil
}

// unsafeReleasePage drops tid's holder entry on pid outright. Intended
// for advanced use only: it bypasses the normal commit/abort release path.
func (bp *BufferPool) unsafeReleasePage(tid TransactionID, pid PageId) {
	bp.lm.forceRelease(pid, tid)
}

// holdsLock is a membership test on the lock table.
func (bp *BufferPool) holdsLock(tid TransactionID, pid PageId) bool {
	return bp.lm.holdsLock(tid, pid)
}

// insertTuple dispatches to the HeapFile registered for tableID.
func (bp *BufferPool) insertTuple(tid TransactionID, tableID int, t *Tuple) error {
	bp.mu.Lock()
	file, ok := bp.files[tableID]
	bp.mu.Unlock()
	if !ok {
		return GoDBError{TupleNotFoundError, "no file registered for table id"}
	}
	return file.insertTuple(t, tid)
}

// deleteTuple dispatches to the HeapFile named by t.Rid.
func (bp *BufferPool) deleteTuple(tid TransactionID, t *Tuple) error {
	rid, ok := t.Rid.(heapFileRid)
	if !ok {
		return GoDBError{TupleNotFoundError, "tuple has no heap file record id"}
	}
	bp.mu.Lock()
	file, ok := bp.files[rid.pid.tableID]
	bp.mu.Unlock()
	if !ok {
		return GoDBError{TupleNotFoundError, "no file registered for table id"}
	}
	return file.deleteTuple(t, tid)
}

// flushPage writes a dirty resident page back to disk, logging its
// before/after images and forcing the log first. A clean or
// non-resident page is a no-op.
func (bp *BufferPool) flushPage(pid PageId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(pid)
}

func (bp *BufferPool) flushPageLocked(pid PageId) error {
	page, ok := bp.frames[pid]
	if !ok {
		return nil
	}
	hp, ok := page.(*heapPage)
	if !ok {
		return nil
	}
	dirtier, dirty := hp.isDirty()
	if !dirty {
		return nil
	}
	if bp.logFile != nil {
		before, err := hp.getBeforeImage()
		if err != nil {
			return err
		}
		if err := bp.logFile.LogUpdate(dirtier, before, hp); err != nil {
			return err
		}
		if err := bp.logFile.Force(); err != nil {
			return err
		}
	}
	if err := hp.getFile().flushPage(hp); err != nil {
		return err
	}
	hp.setDirty(dirtier, false)
	return nil
}

// flushAllPages flushes every resident dirty page.
func (bp *BufferPool) flushAllPages() error {
	bp.mu.Lock()
	pids := make([]PageId, 0, len(bp.frames))
	for pid := range bp.frames {
		pids = append(pids, pid)
	}
	bp.mu.Unlock()

	for _, pid := range pids {
		if err := bp.flushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// flushPages flushes every resident page dirtied by tid and resets its
// before-image to the just-flushed contents.
func (bp *BufferPool) flushPages(tid TransactionID) error {
	bp.mu.Lock()
	var mine []PageId
	for pid, page := range bp.frames {
		if hp, ok := page.(*heapPage); ok {
			if dirtier, dirty := hp.isDirty(); dirty && dirtier == tid {
				mine = append(mine, pid)
			}
		}
	}
	bp.mu.Unlock()

	for _, pid := range mine {
		if err := bp.flushPage(pid); err != nil {
			return err
		}
		bp.mu.Lock()
		if page, ok := bp.frames[pid]; ok {
			if hp, ok := page.(*heapPage); ok {
				hp.setBeforeImage()
			}
		}
		bp.mu.Unlock()
	}
	return nil
}

// discardPage removes pid from the resident frames and drops all its
// holders, without flushing it.
func (bp *BufferPool) discardPage(pid PageId) {
	bp.mu.Lock()
	delete(bp.frames, pid)
	bp.mu.Unlock()
	bp.lm.releasePage(pid)
}

// transactionComplete finishes tid: on commit, its dirty pages are
// flushed and a commit record is appended and forced; on abort, the log
// rolls back its updates by restoring before-images, an abort record is
// appended and forced, and tid's dirty frames are dropped. The log steps
// run only when a log file is attached, and no checkpoint record is
// written in either case. Either way every lock tid holds is released.
func (bp *BufferPool) transactionComplete(tid TransactionID, commit bool) error {
	var err error
	if commit {
		err = bp.flushPages(tid)
		if err == nil && bp.logFile != nil {
			bp.logFile.LogCommit(tid)
			err = bp.logFile.Force()
		}
	} else {
		if bp.logFile != nil {
			err = bp.Rollback(tid)
			if err == nil {
				bp.logFile.LogAbort(tid)
				err = bp.logFile.Force()
			}
		}
		// Under NO STEAL, tid's dirty frames were never written out, so
		// dropping them is the rest of the undo: the next reader reloads
		// the pre-transaction bytes from disk.
		bp.mu.Lock()
		for pid, page := range bp.frames {
			if hp, ok := page.(*heapPage); ok {
				if dirtier, dirty := hp.isDirty(); dirty && dirtier == tid {
					delete(bp.frames, pid)
				}
			}
		}
		bp.mu.Unlock()
	}
	bp.lm.releaseAll(tid)
	return err
}

// FlushAllPages is a testing convenience: it writes every resident page
// to disk unconditionally and clears dirty bits, without going through
// the log. Not transaction-safe; use transactionComplete in normal code.
func (bp *BufferPool) FlushAllPages() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, page := range bp.frames {
		hp, ok := page.(*heapPage)
		if !ok {
			continue
		}
		_ = hp.getFile().flushPage(hp)
		hp.setDirty(-1, false)
	}
}

// AbortTransaction is a thin convenience wrapper over transactionComplete.
func (bp *BufferPool) AbortTransaction(tid TransactionID) {
	_ = bp.transactionComplete(tid, false)
}

// CommitTransaction is a thin convenience wrapper over transactionComplete.
func (bp *BufferPool) CommitTransaction(tid TransactionID) {
	_ = bp.transactionComplete(tid, true)
}

// BeginTransaction logs a begin record, if a log file is attached.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	if bp.logFile != nil {
		bp.logFile.LogBegin(tid)
		return bp.logFile.Force()
	}
	return nil
}

// evictPageLocked implements NO STEAL eviction: the first resident clean
// frame found is dropped. Callers must hold bp.mu.
func (bp *BufferPool) evictPageLocked() error {
	for pid, page := range bp.frames {
		hp, ok := page.(*heapPage)
		if !ok {
			continue
		}
		if _, dirty := hp.isDirty(); !dirty {
			delete(bp.frames, pid)
			return nil
		}
	}
	return GoDBError{BufferPoolFullError, "all pages in buffer pool are dirty"}
}
