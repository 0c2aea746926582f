package godb

// AggState is the running state of one aggregate function. The Aggregate
// operator keeps one AggState per (group, aggregate) pair, cloning a
// zero-valued prototype with Copy whenever a new group appears.
type AggState interface {
	// Init resets the state. alias names the output column; expr extracts
	// the aggregated value from each input tuple.
	Init(alias string, expr Expr) error
	// Copy returns a fresh, zero-valued state with the same alias and
	// expression.
	Copy() AggState
	// AddTuple folds one input tuple into the state.
	AddTuple(*Tuple)
	// Finalize produces the aggregate's single-field result tuple.
	Finalize() *Tuple
	// GetTupleDesc describes the tuple Finalize returns.
	GetTupleDesc() *TupleDesc
}

// CountAggState counts input tuples; the aggregated expression is ignored.
type CountAggState struct {
	alias string
	expr  Expr
	count int
}

func (a *CountAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.count = 0
	return nil
}

func (a *CountAggState) Copy() AggState {
	return &CountAggState{alias: a.alias, expr: a.expr}
}

func (a *CountAggState) AddTuple(t *Tuple) {
	a.count++
}

func (a *CountAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *CountAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{Value: int32(a.count)}}}
}

// SumAggState sums an integer expression. Non-int values are skipped
// rather than failing mid-aggregation.
type SumAggState struct {
	alias string
	expr  Expr
	sum   int64
}

func (a *SumAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.sum = 0
	return nil
}

func (a *SumAggState) Copy() AggState {
	return &SumAggState{alias: a.alias, expr: a.expr}
}

func (a *SumAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(IntField); ok {
		a.sum += int64(iv.Value)
	}
}

func (a *SumAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *SumAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{Value: int32(a.sum)}}}
}

// AvgAggState averages an integer expression. An empty group averages to
// zero rather than dividing by zero.
type AvgAggState struct {
	alias string
	expr  Expr
	sum   int64
	count int64
}

func (a *AvgAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.sum = 0
	a.count = 0
	return nil
}

func (a *AvgAggState) Copy() AggState {
	return &AvgAggState{alias: a.alias, expr: a.expr}
}

func (a *AvgAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(IntField); ok {
		a.sum += int64(iv.Value)
		a.count++
	}
}

func (a *AvgAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *AvgAggState) Finalize() *Tuple {
	avg := int64(0)
	if a.count > 0 {
		avg = a.sum / a.count
	}
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{Value: int32(avg)}}}
}

// extremumAggState is the shared machinery of MIN and MAX: it keeps the
// best value seen so far under a keep-if predicate (OpGt keeps larger
// values, OpLt keeps smaller ones). Works for both int and string
// expressions, since DBValue comparison covers both.
type extremumAggState struct {
	alias  string
	expr   Expr
	keepIf BoolOp
	best   DBValue
}

func (a *extremumAggState) init(alias string, expr Expr, keepIf BoolOp) {
	a.alias = alias
	a.expr = expr
	a.keepIf = keepIf
	a.best = nil
}

func (a *extremumAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if a.best == nil || v.EvalPred(a.best, a.keepIf) {
		a.best = v
	}
}

func (a *extremumAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: a.expr.GetExprType().Ftype}}}
}

func (a *extremumAggState) Finalize() *Tuple {
	best := a.best
	if best == nil {
		// An empty group has no extremum; emit the type's zero value.
		if a.expr.GetExprType().Ftype == StringType {
			best = StringField{}
		} else {
			best = IntField{}
		}
	}
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{best}}
}

// MaxAggState keeps the largest value of an expression.
type MaxAggState struct {
	extremumAggState
}

func (a *MaxAggState) Init(alias string, expr Expr) error {
	a.init(alias, expr, OpGt)
	return nil
}

func (a *MaxAggState) Copy() AggState {
	c := &MaxAggState{}
	c.init(a.alias, a.expr, a.keepIf)
	return c
}

// MinAggState keeps the smallest value of an expression.
type MinAggState struct {
	extremumAggState
}

func (a *MinAggState) Init(alias string, expr Expr) error {
	a.init(alias, expr, OpLt)
	return nil
}

func (a *MinAggState) Copy() AggState {
	c := &MinAggState{}
	c.init(a.alias, a.expr, a.keepIf)
	return c
}
