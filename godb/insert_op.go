package godb

// countDesc is the one-column schema InsertOp and DeleteOp report: the
// number of rows the statement touched, in a field named "count".
var countDesc = &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}

// InsertOp drains its child and stores every produced tuple in
// insertFile, emitting a single count tuple when done. The work happens
// on the first call of the returned iterator function, not in Iterator
// itself, so nothing is inserted until the caller pulls the count tuple.
type InsertOp struct {
	insertFile DBFile
	child      Operator
}

func NewInsertOp(insertFile DBFile, child Operator) *InsertOp {
	return &InsertOp{insertFile: insertFile, child: child}
}

func (i *InsertOp) Descriptor() *TupleDesc {
	return countDesc
}

func (iop *InsertOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := iop.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	done := false
	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		done = true

		var count int32
		for {
			t, err := childIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}
			if err := iop.insertFile.insertTuple(t, tid); err != nil {
				return nil, err
			}
			count++
		}
		return &Tuple{Desc: *countDesc, Fields: []DBValue{IntField{Value: count}}}, nil
	}, nil
}
