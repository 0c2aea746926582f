package godb

// LimitOp truncates its child's output to the first n tuples. The limit
// is an Expr rather than a plain int because the parser hands every
// literal through as a ConstExpr.
type LimitOp struct {
	child     Operator
	limitTups Expr
}

func NewLimitOp(lim Expr, child Operator) *LimitOp {
	return &LimitOp{child: child, limitTups: lim}
}

func (l *LimitOp) Descriptor() *TupleDesc {
	return l.child.Descriptor()
}

// Iterator passes through the child's tuples, reporting exhaustion once
// the limit is reached. The child is not drained past the limit.
func (l *LimitOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	lv, err := l.limitTups.EvalExpr(nil)
	if err != nil {
		return nil, err
	}
	lf, ok := lv.(IntField)
	if !ok {
		return nil, GoDBError{TypeMismatchError, "LIMIT requires an integer expression"}
	}
	limit := lf.Value

	it, err := l.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	emitted := int32(0)
	return func() (*Tuple, error) {
		if emitted >= limit {
			return nil, nil
		}
		t, err := it()
		if err != nil || t == nil {
			return t, err
		}
		emitted++
		return t, nil
	}, nil
}
