package godb

// Filter emits only the child tuples satisfying (left op right), where
// both sides are expressions evaluated against each tuple. The parser
// builds one Filter per AND-ed WHERE predicate, so a multi-clause WHERE
// becomes a chain of Filters.
type Filter struct {
	op    BoolOp
	left  Expr
	right Expr
	child Operator
}

// NewFilter constructs a filter comparing field against constExpr with op.
func NewFilter(constExpr Expr, op BoolOp, field Expr, child Operator) (*Filter, error) {
	return &Filter{op: op, left: field, right: constExpr, child: child}, nil
}

// Descriptor is unchanged from the child: filtering drops rows, not
// columns.
func (f *Filter) Descriptor() *TupleDesc {
	return f.child.Descriptor()
}

// Iterator pulls from the child until a tuple passes the predicate,
// skipping the rest.
func (f *Filter) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := f.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	return func() (*Tuple, error) {
		for {
			t, err := childIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, nil
			}
			keep, err := evalPred(t, f.left, f.right, f.op)
			if err != nil {
				return nil, err
			}
			if keep {
				return t, nil
			}
		}
	}, nil
}
