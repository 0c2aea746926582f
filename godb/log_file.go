package godb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// LogFile is the engine's write-ahead log: an append-only file of
// variable-length records that the buffer pool writes before any page
// reaches disk, and that rollback and crash recovery read back.
//
// Each record is laid out as
//
//	type        int8
//	tid         int32
//	body        (empty for begin/commit/abort; before+after page images
//	             for update)
//	offset      int64  -- the record's own start offset
//
// A page image in an update body is the page's table id (uint32), its
// page number (int32), then its full PageSize bytes. The trailing offset
// field is what makes reverse iteration possible: seeking 8 bytes back
// from any record boundary reveals where that record starts.
//
// Appends accumulate in an in-memory buffer until Force, which writes and
// fsyncs. Callers that need durability (commit, and every page flush)
// call Force explicitly; nothing is durable before that.
type LogFile struct {
	file    *os.File
	buf     bytes.Buffer
	offset  int64
	catalog *Catalog
}

type LogRecordType int8

const (
	AbortRecord LogRecordType = iota
	CommitRecord
	UpdateRecord
	BeginRecord
)

func (t LogRecordType) String() string {
	switch t {
	case AbortRecord:
		return "abort"
	case CommitRecord:
		return "commit"
	case UpdateRecord:
		return "update"
	case BeginRecord:
		return "begin"
	default:
		return "unknown"
	}
}

// NewLogFile opens (creating if absent) the log at fileName. The catalog
// is needed to turn a logged table id back into the HeapFile whose page
// an update record snapshots.
func NewLogFile(fileName string, catalog *Catalog) (*LogFile, error) {
	if catalog == nil {
		return nil, GoDBError{IllegalOperationError, "a log file needs a catalog to resolve page images"}
	}
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &LogFile{file: file, catalog: catalog}, nil
}

// append encodes data little-endian into the in-memory buffer, advancing
// the logical offset as though it were already on disk.
func (lf *LogFile) append(data any) {
	binary.Write(&lf.buf, binary.LittleEndian, data)
	lf.offset += int64(binary.Size(data))
}

// Force writes every buffered record to the file and fsyncs. The
// buffer pool calls this before each page write and at commit.
func (lf *LogFile) Force() error {
	if lf.buf.Len() == 0 {
		return nil
	}
	if _, err := lf.file.Write(lf.buf.Bytes()); err != nil {
		return err
	}
	if off, _ := lf.file.Seek(0, io.SeekCurrent); off != lf.offset {
		DPrintf("log offset drift: file at %d, expected %d", off, lf.offset)
	}
	lf.buf.Reset()
	return lf.file.Sync()
}

// seek forces any buffered appends, then repositions both the file and
// the logical offset.
func (lf *LogFile) seek(offset int64, whence int) error {
	if err := lf.Force(); err != nil {
		return err
	}
	pos, err := lf.file.Seek(offset, whence)
	if err != nil {
		return fmt.Errorf("invalid log seek (%d, %d): %w", offset, whence, err)
	}
	lf.offset = pos
	return nil
}

// read decodes data little-endian from the current position, forcing
// buffered appends first so reads always observe every record.
func (lf *LogFile) read(data any) error {
	if err := lf.Force(); err != nil {
		return err
	}
	if err := binary.Read(lf.file, binary.LittleEndian, data); err != nil {
		return err
	}
	lf.offset += int64(binary.Size(data))
	return nil
}

func (lf *LogFile) readTid(tid *TransactionID) error {
	var v int32
	if err := lf.read(&v); err != nil {
		return err
	}
	*tid = TransactionID(v)
	return nil
}

func (lf *LogFile) appendHeader(typ LogRecordType, tid TransactionID) {
	lf.append(int8(typ))
	lf.append(int32(tid))
}

// appendPageImage writes one page's identity and full contents into the
// current record.
func (lf *LogFile) appendPageImage(page Page) error {
	hp, ok := page.(*heapPage)
	if !ok {
		return GoDBError{IncompatibleTypesError, fmt.Sprintf("cannot log a %T page image", page)}
	}
	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	lf.append(uint32(hp.pid.tableID))
	lf.append(int32(hp.PageNo()))
	lf.append(buf.Bytes())
	return nil
}

// readPageImage is the inverse of appendPageImage: it resolves the logged
// table id through the catalog and reconstructs the page.
func (lf *LogFile) readPageImage() (Page, error) {
	var tableID uint32
	if err := lf.read(&tableID); err != nil {
		return nil, err
	}
	var pageNo int32
	if err := lf.read(&pageNo); err != nil {
		return nil, err
	}
	dbFile, err := lf.catalog.GetDBFileForTableID(int(tableID))
	if err != nil {
		return nil, err
	}
	hf, ok := dbFile.(*HeapFile)
	if !ok {
		return nil, GoDBError{IncompatibleTypesError, fmt.Sprintf("table %d is not backed by a heap file", tableID)}
	}
	pg, err := newHeapPage(hf.Descriptor(), int(pageNo), hf)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, PageSize)
	if err := lf.read(raw); err != nil {
		return nil, err
	}
	if err := pg.initFromBuffer(bytes.NewBuffer(raw)); err != nil {
		return nil, err
	}
	return pg, nil
}

// LogBegin appends a begin record for tid. Not forced.
func (lf *LogFile) LogBegin(tid TransactionID) {
	offset := lf.offset
	lf.appendHeader(BeginRecord, tid)
	lf.append(offset)
}

// LogCommit appends a commit record for tid. Not forced.
func (lf *LogFile) LogCommit(tid TransactionID) {
	offset := lf.offset
	lf.appendHeader(CommitRecord, tid)
	lf.append(offset)
}

// LogAbort appends an abort record for tid. Not forced.
func (lf *LogFile) LogAbort(tid TransactionID) {
	offset := lf.offset
	lf.appendHeader(AbortRecord, tid)
	lf.append(offset)
}

// LogUpdate appends an update record holding the before and after images
// of one page modified by tid. Not forced: the caller decides when the
// record must be durable.
func (lf *LogFile) LogUpdate(tid TransactionID, before Page, after Page) error {
	if before == nil || after == nil {
		return GoDBError{IllegalOperationError, "an update record needs both a before and an after image"}
	}
	offset := lf.offset
	lf.appendHeader(UpdateRecord, tid)
	if err := lf.appendPageImage(before); err != nil {
		return err
	}
	if err := lf.appendPageImage(after); err != nil {
		return err
	}
	lf.append(offset)
	return nil
}

// LogRecord is one decoded record: where it starts, what kind it is, and
// which transaction wrote it. Update records additionally carry their
// page images as *UpdateLogRecord.
type LogRecord interface {
	Offset() int64
	Type() LogRecordType
	Tid() TransactionID
}

type GenericLogRecord struct {
	offset int64
	typ    LogRecordType
	tid    TransactionID
}

func (r GenericLogRecord) Offset() int64       { return r.offset }
func (r GenericLogRecord) Type() LogRecordType { return r.typ }
func (r GenericLogRecord) Tid() TransactionID  { return r.tid }

type UpdateLogRecord struct {
	GenericLogRecord
	Before Page
	After  Page
}

// ForwardIterator decodes records from the current position towards the
// end of the log. It yields nil, nil at end of file; a record cut short
// by a crash mid-write surfaces as an error instead.
func (lf *LogFile) ForwardIterator() func() (LogRecord, error) {
	partial := func(what string, err error) (LogRecord, error) {
		return nil, fmt.Errorf("reading %s: partial log record at offset %d: %v", what, lf.offset, err)
	}

	return func() (LogRecord, error) {
		var record GenericLogRecord
		var ret LogRecord = &record

		record.offset = lf.offset

		err := lf.read(&record.typ)
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return partial("record type", err)
		}
		if err := lf.readTid(&record.tid); err != nil {
			return partial("transaction id", err)
		}

		if record.typ == UpdateRecord {
			update := UpdateLogRecord{GenericLogRecord: record}
			var err error
			if update.Before, err = lf.readPageImage(); err != nil {
				return partial("before image", err)
			}
			if update.After, err = lf.readPageImage(); err != nil {
				return partial("after image", err)
			}
			ret = &update
		}

		var startOffset int64
		if err := lf.read(&startOffset); err != nil || startOffset != record.offset {
			return partial("record offset", err)
		}
		return ret, nil
	}
}

// ReverseIterator decodes records from the end of the log towards the
// beginning, using each record's trailing offset field to find where it
// starts. It yields nil, nil once the beginning is reached.
func (lf *LogFile) ReverseIterator() (func() (LogRecord, error), error) {
	if err := lf.seek(0, io.SeekEnd); err != nil {
		return nil, err
	}

	return func() (LogRecord, error) {
		if lf.offset < 8 {
			return nil, nil
		}
		var start int64
		if err := lf.seek(-8, io.SeekCurrent); err != nil {
			return nil, err
		}
		if err := lf.read(&start); err != nil {
			return nil, err
		}
		if err := lf.seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		record, err := lf.ForwardIterator()()
		if err != nil {
			return nil, err
		}
		// Leave the position at this record's start, which is the end of
		// the one before it.
		if err := lf.seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		return record, nil
	}, nil
}

// OutputPrettyLog dumps a human-readable listing of every record, for
// debugging. The file position is restored afterwards.
func (lf *LogFile) OutputPrettyLog() error {
	oldPos := lf.offset
	defer lf.seek(oldPos, io.SeekStart)

	if err := lf.seek(0, io.SeekStart); err != nil {
		return err
	}
	iter := lf.ForwardIterator()
	for {
		pos := lf.offset
		record, err := iter()
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		switch r := record.(type) {
		case *UpdateLogRecord:
			before := r.Before.(*heapPage)
			DPrintf("%d RECORD %s (%d) offset=%d page=%v", pos, r.Type(), r.Tid(), r.Offset(), before.pid)
		default:
			DPrintf("%d RECORD %s (%d) offset=%d", pos, record.Type(), record.Tid(), record.Offset())
		}
	}
}
