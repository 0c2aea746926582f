package godb

import (
	"path/filepath"
	"testing"
)

// makeTestVars builds the fixture most storage tests start from: a
// two-column schema, two rows of it, a HeapFile over a fresh temp-dir
// backing file, the BufferPool it is registered with, and an open
// transaction.
func makeTestVars(t *testing.T) (TupleDesc, Tuple, Tuple, *HeapFile, *BufferPool, TransactionID) {
	t.Helper()

	td := TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	t1 := Tuple{
		Desc: td,
		Fields: []DBValue{
			StringField{Value: "sam"},
			IntField{Value: 25},
		},
	}
	t2 := Tuple{
		Desc: td,
		Fields: []DBValue{
			StringField{Value: "george jones"},
			IntField{Value: 999},
		},
	}

	bp, err := NewBufferPool(10)
	if err != nil {
		t.Fatalf("creating buffer pool: %v", err)
	}
	hf, err := NewHeapFile(filepath.Join(t.TempDir(), "test.dat"), &td, bp)
	if err != nil {
		t.Fatalf("creating heap file: %v", err)
	}

	tid := NewTID()
	bp.BeginTransaction(tid)
	return td, t1, t2, hf, bp, tid
}

// makeIntHeapFile builds a HeapFile with the two-int-column schema the
// scan and eviction tests use, registered with a pool of the given
// capacity.
func makeIntHeapFile(t *testing.T, poolPages int) (*HeapFile, *BufferPool) {
	t.Helper()
	td := TupleDesc{Fields: []FieldType{
		{Fname: "a", Ftype: IntType},
		{Fname: "b", Ftype: IntType},
	}}
	bp, err := NewBufferPool(poolPages)
	if err != nil {
		t.Fatalf("creating buffer pool: %v", err)
	}
	hf, err := NewHeapFile(filepath.Join(t.TempDir(), "ints.dat"), &td, bp)
	if err != nil {
		t.Fatalf("creating heap file: %v", err)
	}
	return hf, bp
}

func intTuple(td *TupleDesc, a, b int32) *Tuple {
	return &Tuple{Desc: *td, Fields: []DBValue{IntField{Value: a}, IntField{Value: b}}}
}

// insertCommitted inserts (a, b) rows under one transaction and commits,
// leaving every touched page clean.
func insertCommitted(t *testing.T, hf *HeapFile, bp *BufferPool, rows [][2]int32) {
	t.Helper()
	tid := NewTID()
	bp.BeginTransaction(tid)
	for _, r := range rows {
		if err := hf.insertTuple(intTuple(hf.Descriptor(), r[0], r[1]), tid); err != nil {
			t.Fatalf("inserting (%d, %d): %v", r[0], r[1], err)
		}
	}
	if err := bp.transactionComplete(tid, true); err != nil {
		t.Fatalf("committing: %v", err)
	}
}

// scanAll drains hf's iterator under tid and returns every tuple.
func scanAll(t *testing.T, hf *HeapFile, tid TransactionID) []*Tuple {
	t.Helper()
	iter, err := hf.Iterator(tid)
	if err != nil {
		t.Fatalf("opening iterator: %v", err)
	}
	var out []*Tuple
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterating: %v", err)
		}
		if tup == nil {
			return out
		}
		out = append(out, tup)
	}
}

// withPageSize shrinks PageSize for the duration of one test so
// multi-page behaviour is reachable without thousands of rows.
func withPageSize(t *testing.T, size int) {
	t.Helper()
	old := PageSize
	PageSize = size
	t.Cleanup(func() { PageSize = old })
}
