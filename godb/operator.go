package godb

// Operator is a physical query plan node: something that can describe its
// output schema and produce a finite sequence of tuples under a
// transaction. Every operator in this package (Filter, Project, OrderBy,
// LimitOp, InsertOp, DeleteOp, EqualityJoin, Aggregate, and the scan
// wrapper over a HeapFile's iterator) implements this interface, so plans
// compose by nesting one operator's Iterator as another's child.
type Operator interface {
	// Descriptor returns the schema of the tuples this operator produces.
	Descriptor() *TupleDesc
	// Iterator returns a function that yields one tuple per call, and
	// (nil, nil) once exhausted.
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

// scanOperator adapts a DBFile into an Operator, the leaf of every plan
// tree: a sequential scan of one table's tuples under the caller's
// transaction.
type scanOperator struct {
	file DBFile
	desc *TupleDesc
}

// NewScanOperator wraps file as a leaf Operator, optionally presenting its
// fields under tableAlias (e.g. "FROM orders AS o").
func NewScanOperator(file DBFile, tableAlias string) *scanOperator {
	desc := file.Descriptor()
	if tableAlias != "" {
		desc = desc.setTableAlias(tableAlias)
	}
	return &scanOperator{file: file, desc: desc}
}

func (s *scanOperator) Descriptor() *TupleDesc {
	return s.desc
}

func (s *scanOperator) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	it, err := s.file.Iterator(tid)
	if err != nil {
		return nil, err
	}
	return func() (*Tuple, error) {
		t, err := it()
		if err != nil || t == nil {
			return t, err
		}
		out := &Tuple{Desc: *s.desc, Fields: t.Fields, Rid: t.Rid}
		return out, nil
	}, nil
}
