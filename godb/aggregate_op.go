package godb

// Aggregate computes one or more AggState values, optionally grouped by a
// list of expressions. With no groupByFields, every input tuple feeds a
// single implicit group and exactly one output tuple is produced, even
// over empty input. Grouped aggregation over empty input produces no
// output tuples: there are no groups.
type Aggregate struct {
	child         Operator
	newAggState   []AggState
	groupByFields []Expr
}

// NewAggregator constructs an aggregate operator. newAggState supplies one
// zero-valued, already-Init'd AggState per aggregate in the output (e.g.
// one for "SELECT COUNT(*), MAX(age)"); groupByFields may be empty for no
// grouping.
func NewAggregator(newAggState []AggState, groupByFields []Expr, child Operator) *Aggregate {
	return &Aggregate{child: child, newAggState: newAggState, groupByFields: groupByFields}
}

// Descriptor is the concatenation of the group-by fields (in order) followed
// by each aggregate's output field.
func (a *Aggregate) Descriptor() *TupleDesc {
	fields := make([]FieldType, 0, len(a.groupByFields)+len(a.newAggState))
	for _, gf := range a.groupByFields {
		fields = append(fields, gf.GetExprType())
	}
	for _, agg := range a.newAggState {
		fields = append(fields, agg.GetTupleDesc().Fields...)
	}
	return &TupleDesc{Fields: fields}
}

// aggGroup tracks one group's key tuple (for re-emitting the group-by
// field values) and its running AggState, one per requested aggregate.
type aggGroup struct {
	groupTuple *Tuple
	states     []AggState
}

func (a *Aggregate) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := a.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	groups := make(map[any]*aggGroup)
	var order []any

	noGrouping := len(a.groupByFields) == 0
	if noGrouping {
		states := make([]AggState, len(a.newAggState))
		for i, s := range a.newAggState {
			states[i] = s.Copy()
		}
		groups[struct{}{}] = &aggGroup{states: states}
		order = append(order, struct{}{})
	}

	for {
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}

		var key any = struct{}{}
		var groupFields []DBValue
		if !noGrouping {
			groupFields = make([]DBValue, len(a.groupByFields))
			for i, gf := range a.groupByFields {
				v, err := gf.EvalExpr(t)
				if err != nil {
					return nil, err
				}
				groupFields[i] = v
			}
			kt := &Tuple{Desc: TupleDesc{}, Fields: groupFields}
			kv, err := kt.tupleKey()
			if err != nil {
				return nil, err
			}
			key = kv
		}

		g, ok := groups[key]
		if !ok {
			states := make([]AggState, len(a.newAggState))
			for i, s := range a.newAggState {
				states[i] = s.Copy()
			}
			var groupTuple *Tuple
			if !noGrouping {
				desc := make([]FieldType, len(a.groupByFields))
				for i, gf := range a.groupByFields {
					desc[i] = gf.GetExprType()
				}
				groupTuple = &Tuple{Desc: TupleDesc{Fields: desc}, Fields: groupFields}
			}
			g = &aggGroup{groupTuple: groupTuple, states: states}
			groups[key] = g
			order = append(order, key)
		}

		for _, s := range g.states {
			s.AddTuple(t)
		}
	}

	idx := 0
	return func() (*Tuple, error) {
		if idx >= len(order) {
			return nil, nil
		}
		g := groups[order[idx]]
		idx++

		fields := make([]DBValue, 0, len(a.groupByFields)+len(a.newAggState))
		fts := make([]FieldType, 0, len(a.groupByFields)+len(a.newAggState))
		if g.groupTuple != nil {
			fields = append(fields, g.groupTuple.Fields...)
			fts = append(fts, g.groupTuple.Desc.Fields...)
		}
		for _, s := range g.states {
			res := s.Finalize()
			fields = append(fields, res.Fields...)
			fts = append(fts, res.Desc.Fields...)
		}
		return &Tuple{Desc: TupleDesc{Fields: fts}, Fields: fields}, nil
	}, nil
}
