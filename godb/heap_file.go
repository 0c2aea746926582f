package godb

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered collection of tuples for one table, stored as
// a contiguous sequence of fixed-size pages in a single backing file.
// Its TableID is a stable hash of the backing file's canonical absolute
// path, so two HeapFile values opened against the same file always agree
// on the ids they hand out -- a requirement for the buffer pool's page
// cache keys to mean the same thing across restarts.
type HeapFile struct {
	td          *TupleDesc
	numPages    int
	backingFile string
	tableID     int
	bufPool     *BufferPool
	sync.Mutex
}

// tableIDFromPath hashes the canonical absolute path of file into a
// stable, process-independent table id.
func tableIDFromPath(file string) (int, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return 0, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(abs))
	return int(h.Sum32()), nil
}

// NewHeapFile opens or creates the backing file for a table. fromFile may
// be empty (in which case it is created) or a previously created heap
// file whose length is already a multiple of PageSize.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f, err := os.OpenFile(fromFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	tableID, err := tableIDFromPath(fromFile)
	if err != nil {
		return nil, err
	}
	numPages := int(fi.Size() / int64(PageSize))
	hf := &HeapFile{
		td:          td,
		numPages:    numPages,
		backingFile: fromFile,
		tableID:     tableID,
		bufPool:     bp,
	}
	if bp != nil {
		bp.registerFile(hf)
	}
	return hf, nil
}

// BackingFile returns the path of the file this HeapFile reads and
// writes.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// NumPages returns the current length of the file, in pages.
func (f *HeapFile) NumPages() int {
	f.Lock()
	defer f.Unlock()
	return f.numPages
}

// TableID returns the stable id HeapPageIDs for this file carry.
func (f *HeapFile) TableID() int {
	return f.tableID
}

// LoadFromCSV populates the file from a CSV source, one inserting
// transaction per line so the buffer pool never needs to hold the whole
// file dirty at once.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[0 : len(fields)-1]
		}
		numFields := len(fields)
		cnt++

		desc := f.Descriptor()
		if desc == nil || desc.Fields == nil {
			return GoDBError{MalformedDataError, "Descriptor was nil"}
		}
		if numFields != len(desc.Fields) {
			return GoDBError{MalformedDataError, fmt.Sprintf("LoadFromCSV: line %d (%s) does not have expected number of fields (expected %d, got %d)", cnt, line, len(desc.Fields), numFields)}
		}
		if cnt == 1 && hasHeader {
			continue
		}

		var newFields []DBValue
		for fno, field := range fields {
			switch desc.Fields[fno].Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				floatVal, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return GoDBError{TypeMismatchError, fmt.Sprintf("LoadFromCSV: couldn't convert value %s to int, tuple %d", field, cnt)}
				}
				newFields = append(newFields, IntField{Value: int32(floatVal)})
			case StringType:
				if len(field) > StringMaxSize {
					field = field[0:StringMaxSize]
				}
				newFields = append(newFields, StringField{Value: field})
			}
		}

		newT := Tuple{Desc: *desc, Fields: newFields}
		tid := NewTID()
		if err := f.insertTuple(&newT, tid); err != nil {
			return err
		}
		f.bufPool.transactionComplete(tid, true)
	}
	return scanner.Err()
}

// readPage loads page pageNo directly from disk, bypassing the buffer
// pool. Used by the pool's own miss path and by tests that want an
// unshared page.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	b := make([]byte, PageSize)
	n, err := file.ReadAt(b, int64(pageNo)*int64(PageSize))
	if err != nil {
		return nil, err
	}
	if n != PageSize {
		return nil, GoDBError{MalformedDataError, "not enough bytes read in readPage"}
	}
	pg, err := newHeapPage(f.Descriptor(), pageNo, f)
	if err != nil {
		return nil, err
	}
	if err := pg.initFromBuffer(bytes.NewBuffer(b)); err != nil {
		return nil, err
	}
	return pg, nil
}

// insertTuple searches the file's existing pages in order (each fetched
// through the buffer pool under exclusive permission) for one with a free
// slot; failing that, it appends a new page.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) error {
	f.Lock()
	numPages := f.numPages
	f.Unlock()

	for p := 0; p < numPages; p++ {
		pid := HeapPageID{tableID: f.tableID, pageNo: p}
		pg, err := f.bufPool.GetPage(tid, pid, WritePerm)
		if err != nil {
			return err
		}
		heapp := pg.(*heapPage)
		if heapp.getNumEmptySlots() == 0 {
			continue
		}
		if _, err := heapp.insertTuple(t); err != nil {
			if err == ErrPageFull {
				continue
			}
			return err
		}
		heapp.setDirty(tid, true)
		return nil
	}

	f.Lock()
	newPageNo := f.numPages
	emptyPage, err := newHeapPage(f.td, newPageNo, f)
	if err != nil {
		f.Unlock()
		return err
	}
	if err := f.flushPage(emptyPage); err != nil {
		f.Unlock()
		return err
	}
	f.numPages++
	f.Unlock()

	pid := HeapPageID{tableID: f.tableID, pageNo: newPageNo}
	pg, err := f.bufPool.GetPage(tid, pid, WritePerm)
	if err != nil {
		return err
	}
	heapp := pg.(*heapPage)
	if _, err := heapp.insertTuple(t); err != nil {
		return err
	}
	heapp.setDirty(tid, true)
	return nil
}

// deleteTuple removes the tuple named by t.Rid from its page.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) error {
	if t.Rid == nil {
		return GoDBError{TupleNotFoundError, "provided tuple has nil rid, cannot delete"}
	}
	rid, ok := t.Rid.(heapFileRid)
	if !ok {
		return GoDBError{TupleNotFoundError, "provided tuple is not a heap file tuple, based on rid"}
	}
	if rid.pid.tableID != f.tableID || rid.pid.pageNo < 0 || rid.pid.pageNo >= f.NumPages() {
		return GoDBError{TupleNotFoundError, "provided tuple references a page that does not belong to this file"}
	}

	pg, err := f.bufPool.GetPage(tid, rid.pid, WritePerm)
	if err != nil {
		return err
	}
	hp, ok := pg.(*heapPage)
	if !ok {
		return GoDBError{IncompatibleTypesError, "buffer pool returned non-heap page when heap page expected"}
	}
	if err := hp.deleteTuple(rid); err != nil {
		return err
	}
	hp.setDirty(tid, true)
	return nil
}

// flushPage writes p back to its offset in the backing file.
func (f *HeapFile) flushPage(p Page) error {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	hp := p.(*heapPage)

	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	_, err = file.WriteAt(buf.Bytes(), int64(hp.pid.pageNo)*int64(PageSize))
	return err
}

// Descriptor returns the file's schema.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.td
}

// Iterator yields tuples across all pages in ascending (pageNumber, slot)
// order, retrieving each page through the buffer pool with read-only
// permission.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	nPages := f.NumPages()
	pgNo := 0
	var pgIter func() (*Tuple, error)
	return func() (*Tuple, error) {
		for {
			if pgIter == nil {
				if pgNo == nPages {
					return nil, nil
				}
				pid := HeapPageID{tableID: f.tableID, pageNo: pgNo}
				p, err := f.bufPool.GetPage(tid, pid, ReadPerm)
				if err != nil {
					return nil, err
				}
				pgIter = p.(*heapPage).tupleIter()
				pgNo++
			}
			next, err := pgIter()
			if err != nil {
				return nil, err
			}
			if next == nil {
				pgIter = nil
				continue
			}
			return &Tuple{Desc: *f.td, Fields: next.Fields, Rid: next.Rid}, nil
		}
	}, nil
}
