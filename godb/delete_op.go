package godb

// DeleteOp drains its child and removes every produced tuple from
// deleteFile, emitting a single count tuple when done. The child is
// typically a Filter over a scan of the same file, so each tuple arrives
// carrying the Rid the delete needs.
type DeleteOp struct {
	deleteFile DBFile
	child      Operator
}

func NewDeleteOp(deleteFile DBFile, child Operator) *DeleteOp {
	return &DeleteOp{deleteFile: deleteFile, child: child}
}

func (d *DeleteOp) Descriptor() *TupleDesc {
	return countDesc
}

func (d *DeleteOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := d.child.Iterator(tid)
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
			if err := d.deleteFile.deleteTuple(t, tid); err != nil {
				return nil, err
			}
			count++
		}
		return &Tuple{Desc: *countDesc, Fields: []DBValue{IntField{Value: count}}}, nil
	}, nil
}
