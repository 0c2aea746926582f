package godb

import (
	"bytes"
	"fmt"
)

// HeapPageID identifies one page of one table's HeapFile. TableID is a
// stable hash of the file's canonical path (see HeapFile.TableID);
// PageNo is the page's 0-based offset within that file.
type HeapPageID struct {
	tableID int
	pageNo  int
}

func (p HeapPageID) TableID() int { return p.tableID }
func (p HeapPageID) PageNo() int  { return p.pageNo }

// heapFileRid is the concrete recordID used by this engine: a tuple's
// page and slot index.
type heapFileRid struct {
	pid  HeapPageID
	slot int
}

// heapPage is a fixed-size page: a header bitmap marking which of its
// fixed-width slots are occupied, followed by the slot array itself.
// Slot i's occupancy bit is bit (i mod 8) -- least-significant-bit
// first -- of header byte i/8.
type heapPage struct {
	pid      HeapPageID
	desc     TupleDesc
	file     *HeapFile
	numSlots int
	header   []byte
	tuples   []*Tuple

	oldData []byte
	dirtier TransactionID
	dirty   bool
}

// numSlotsForTupleWidth computes floor(PageSize*8 / (tupleWidth*8 + 1)),
// the number of slots a page of the configured size can hold, including
// the one-bit header cost of each slot.
func numSlotsForTupleWidth(tupleWidth int) int {
	return (PageSize * 8) / (tupleWidth*8 + 1)
}

func headerBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// newHeapPage constructs an empty page, as allocated when a HeapFile
// grows to hold an insert that doesn't fit in any existing page.
func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	numSlots := numSlotsForTupleWidth(desc.bytesPerTuple())
	return &heapPage{
		pid:      HeapPageID{tableID: f.TableID(), pageNo: pageNo},
		desc:     *desc,
		file:     f,
		numSlots: numSlots,
		header:   make([]byte, headerBytes(numSlots)),
		tuples:   make([]*Tuple, numSlots),
	}, nil
}

func (h *heapPage) isSlotUsed(i int) bool {
	b := h.header[i/8]
	return b&(1<<uint(i%8)) != 0
}

func (h *heapPage) setSlotUsed(i int, used bool) {
	if used {
		h.header[i/8] |= 1 << uint(i%8)
	} else {
		h.header[i/8] &^= 1 << uint(i%8)
	}
}

// getNumEmptySlots counts header bits that are 0.
func (h *heapPage) getNumEmptySlots() int {
	n := 0
	for i := 0; i < h.numSlots; i++ {
		if !h.isSlotUsed(i) {
			n++
		}
	}
	return n
}

func (h *heapPage) getNumSlots() int {
	return h.numSlots
}

// insertTuple places t into the lowest-numbered free slot, sets t's
// RecordId, and returns ErrPageFull if the page has none.
func (h *heapPage) insertTuple(t *Tuple) (recordID, error) {
	for i := 0; i < h.numSlots; i++ {
		if h.isSlotUsed(i) {
			continue
		}
		cp := &Tuple{Desc: h.desc, Fields: append([]DBValue{}, t.Fields...)}
		rid := heapFileRid{pid: h.pid, slot: i}
		cp.Rid = rid
		h.tuples[i] = cp
		h.setSlotUsed(i, true)
		t.Rid = rid
		return rid, nil
	}
	return nil, ErrPageFull
}

// deleteTuple clears the slot named by rid, verifying the slot is
// currently occupied.
func (h *heapPage) deleteTuple(rid recordID) error {
	hrid, ok := rid.(heapFileRid)
	if !ok {
		return GoDBError{TupleNotFoundError, "supplied rid is not a heapFileRid"}
	}
	if hrid.slot < 0 || hrid.slot >= h.numSlots {
		return GoDBError{TupleNotFoundError, "slot does not exist on delete"}
	}
	if !h.isSlotUsed(hrid.slot) || h.tuples[hrid.slot] == nil {
		return GoDBError{TupleNotFoundError, "tuple is not resident in the named slot"}
	}
	h.tuples[hrid.slot] = nil
	h.setSlotUsed(hrid.slot, false)
	return nil
}

func (h *heapPage) isDirty() (TransactionID, bool) {
	return h.dirtier, h.dirty
}

func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtier = tid
	}
}

func (p *heapPage) getFile() DBFile {
	return p.file
}

func (p *heapPage) getPageId() PageId {
	return p.pid
}

// PageNo returns this page's offset within its file.
func (p *heapPage) PageNo() int {
	return p.pid.pageNo
}

// toBuffer serialises the header then each slot (occupied slots as their
// tuple image, empty slots as zero bytes), zero-padded to PageSize.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	b := new(bytes.Buffer)
	b.Write(h.header)
	tupleWidth := h.desc.bytesPerTuple()
	for i := 0; i < h.numSlots; i++ {
		if h.isSlotUsed(i) && h.tuples[i] != nil {
			if err := h.tuples[i].writeTo(b); err != nil {
				return nil, err
			}
		} else {
			b.Write(make([]byte, tupleWidth))
		}
	}
	if b.Len() > PageSize {
		return nil, GoDBError{MalformedDataError, "buffer is greater than page size"}
	}
	b.Write(make([]byte, PageSize-b.Len()))
	return b, nil
}

// initFromBuffer parses a serialised page, as produced by toBuffer, into
// h. buf must hold exactly PageSize bytes.
func (h *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	if buf.Len() != PageSize {
		return GoDBError{MalformedDataError, fmt.Sprintf("page buffer is %d bytes, want %d", buf.Len(), PageSize)}
	}
	tupleWidth := h.desc.bytesPerTuple()
	numSlots := numSlotsForTupleWidth(tupleWidth)
	hdrLen := headerBytes(numSlots)

	header := make([]byte, hdrLen)
	if n, err := buf.Read(header); err != nil || n != hdrLen {
		return GoDBError{MalformedDataError, "truncated page header"}
	}

	h.numSlots = numSlots
	h.header = header
	h.tuples = make([]*Tuple, numSlots)

	for i := 0; i < numSlots; i++ {
		slotBytes := make([]byte, tupleWidth)
		if n, err := buf.Read(slotBytes); err != nil || n != tupleWidth {
			return GoDBError{MalformedDataError, "truncated slot image"}
		}
		if h.header[i/8]&(1<<uint(i%8)) == 0 {
			continue
		}
		tb := bytes.NewBuffer(slotBytes)
		t, err := readTupleFrom(tb, &h.desc)
		if err != nil {
			return err
		}
		t.Rid = heapFileRid{pid: h.pid, slot: i}
		h.tuples[i] = t
	}
	h.dirty = false
	return nil
}

// setBeforeImage snapshots the page's current serialised bytes.
func (h *heapPage) setBeforeImage() {
	buf, err := h.toBuffer()
	if err != nil {
		return
	}
	h.oldData = append([]byte{}, buf.Bytes()...)
}

// getBeforeImage reconstructs a heapPage from the last setBeforeImage
// snapshot.
func (h *heapPage) getBeforeImage() (*heapPage, error) {
	if h.oldData == nil {
		return nil, GoDBError{IllegalOperationError, "no before image has been set"}
	}
	np, err := newHeapPage(&h.desc, h.pid.pageNo, h.file)
	if err != nil {
		return nil, err
	}
	if err := np.initFromBuffer(bytes.NewBuffer(append([]byte{}, h.oldData...))); err != nil {
		return nil, err
	}
	return np, nil
}

// tupleIter returns a finite iterator over occupied slots in slot order.
func (p *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < p.numSlots {
			idx := i
			i++
			if p.isSlotUsed(idx) && p.tuples[idx] != nil {
				return p.tuples[idx], nil
			}
		}
		return nil, nil
	}
}
