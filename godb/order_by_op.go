package godb

import "sort"

// OrderBy is a blocking sort: it drains its child into memory, sorts by
// the orderBy expressions in priority order, then replays the sorted rows.
// ascending[i] controls the direction of orderBy[i].
type OrderBy struct {
	orderBy   []Expr
	child     Operator
	ascending []bool
}

func NewOrderBy(orderByFields []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	if len(orderByFields) != len(ascending) {
		return nil, GoDBError{MalformedDataError, "orderByFields and ascending must be the same length"}
	}
	return &OrderBy{orderBy: orderByFields, child: child, ascending: ascending}, nil
}

// Descriptor is unchanged from the child: sorting reorders rows, not
// columns.
func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

// tupleSorter adapts a tuple slice plus the sort keys to sort.Interface.
type tupleSorter struct {
	data      []Tuple
	orderBy   []Expr
	ascending []bool
}

func (ts *tupleSorter) Len() int      { return len(ts.data) }
func (ts *tupleSorter) Swap(i, j int) { ts.data[i], ts.data[j] = ts.data[j], ts.data[i] }

// Less compares by each key in turn, falling through to the next key on
// ties. A descending key just swaps the operands before comparing.
func (ts *tupleSorter) Less(i, j int) bool {
	p, q := &ts.data[i], &ts.data[j]
	for k, expr := range ts.orderBy {
		a, b := p, q
		if !ts.ascending[k] {
			a, b = q, p
		}
		cmp, err := a.compareField(b, expr)
		if err != nil || cmp == OrderedEqual {
			continue
		}
		return cmp == OrderedLessThan
	}
	return false
}

func (o *OrderBy) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	it, err := o.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	var rows []Tuple
	for {
		t, err := it()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		rows = append(rows, *t)
	}

	sort.Stable(&tupleSorter{data: rows, orderBy: o.orderBy, ascending: o.ascending})

	i := 0
	return func() (*Tuple, error) {
		if i >= len(rows) {
			return nil, nil
		}
		t := rows[i]
		i++
		return &t, nil
	}, nil
}
