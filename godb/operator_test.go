package godb

import "testing"

// sliceOperator serves a fixed tuple slice, so operator tests don't need
// a heap file behind every child.
type sliceOperator struct {
	desc   TupleDesc
	tuples []*Tuple
}

func (s *sliceOperator) Descriptor() *TupleDesc {
	return &s.desc
}

func (s *sliceOperator) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	i := 0
	return func() (*Tuple, error) {
		if i >= len(s.tuples) {
			return nil, nil
		}
		t := s.tuples[i]
		i++
		return t, nil
	}, nil
}

var opTestDesc = TupleDesc{Fields: []FieldType{
	{Fname: "name", Ftype: StringType},
	{Fname: "age", Ftype: IntType},
}}

func opTestRows() *sliceOperator {
	mk := func(name string, age int32) *Tuple {
		return &Tuple{Desc: opTestDesc, Fields: []DBValue{StringField{Value: name}, IntField{Value: age}}}
	}
	return &sliceOperator{desc: opTestDesc, tuples: []*Tuple{
		mk("sam", 25),
		mk("joe", 35),
		mk("sam", 50),
		mk("ally", 60),
	}}
}

func drain(t *testing.T, op Operator) []*Tuple {
	t.Helper()
	it, err := op.Iterator(NewTID())
	if err != nil {
		t.Fatalf("opening iterator: %v", err)
	}
	var out []*Tuple
	for {
		tup, err := it()
		if err != nil {
			t.Fatalf("iterating: %v", err)
		}
		if tup == nil {
			return out
		}
		out = append(out, tup)
	}
}

func TestFilterKeepsMatches(t *testing.T) {
	ageExpr := NewFieldExpr(opTestDesc.Fields[1])
	f, err := NewFilter(NewConstExpr(IntField{Value: 40}, IntType), OpGt, ageExpr, opTestRows())
	if err != nil {
		t.Fatalf("building filter: %v", err)
	}
	got := drain(t, f)
	if len(got) != 2 {
		t.Fatalf("filter kept %d rows, want 2", len(got))
	}
	for _, tup := range got {
		if tup.Fields[1].(IntField).Value <= 40 {
			t.Errorf("row %v should have been filtered out", tup)
		}
	}
}

func TestLimitTruncates(t *testing.T) {
	l := NewLimitOp(NewConstExpr(IntField{Value: 3}, IntType), opTestRows())
	if got := drain(t, l); len(got) != 3 {
		t.Errorf("limit 3 emitted %d rows", len(got))
	}
	l = NewLimitOp(NewConstExpr(IntField{Value: 0}, IntType), opTestRows())
	if got := drain(t, l); len(got) != 0 {
		t.Errorf("limit 0 emitted %d rows", len(got))
	}
}

func TestOrderBySortsWithTies(t *testing.T) {
	nameExpr := NewFieldExpr(opTestDesc.Fields[0])
	ageExpr := NewFieldExpr(opTestDesc.Fields[1])
	o, err := NewOrderBy([]Expr{nameExpr, ageExpr}, opTestRows(), []bool{true, false})
	if err != nil {
		t.Fatalf("building order by: %v", err)
	}
	got := drain(t, o)
	wantNames := []string{"ally", "joe", "sam", "sam"}
	wantAges := []int32{60, 35, 50, 25}
	for i := range got {
		if got[i].Fields[0].(StringField).Value != wantNames[i] || got[i].Fields[1].(IntField).Value != wantAges[i] {
			t.Fatalf("row %d = %v, want (%s, %d)", i, got[i], wantNames[i], wantAges[i])
		}
	}
}

func TestProjectDistinct(t *testing.T) {
	nameExpr := NewFieldExpr(opTestDesc.Fields[0])
	p, err := NewProjectOp([]Expr{nameExpr}, []string{"name"}, true, opTestRows())
	if err != nil {
		t.Fatalf("building projection: %v", err)
	}
	got := drain(t, p)
	if len(got) != 3 {
		t.Fatalf("distinct projection emitted %d rows, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, tup := range got {
		seen[tup.Fields[0].(StringField).Value] = true
	}
	if !seen["sam"] || !seen["joe"] || !seen["ally"] {
		t.Errorf("distinct names = %v, want sam/joe/ally", seen)
	}
}

func TestJoinMatchesByKey(t *testing.T) {
	left := opTestRows()
	right := opTestRows()
	nameExpr := NewFieldExpr(opTestDesc.Fields[0])
	j, err := NewJoin(left, nameExpr, right, nameExpr, BufferPoolDefaultPages)
	if err != nil {
		t.Fatalf("building join: %v", err)
	}
	got := drain(t, j)
	// sam matches sam twice on each side: 2*2 + joe 1 + ally 1.
	if len(got) != 6 {
		t.Errorf("self-join on name emitted %d rows, want 6", len(got))
	}
	if got[0].Desc.Fields == nil || len(got[0].Fields) != 4 {
		t.Errorf("joined rows should carry both sides' fields")
	}
}

func TestAggregateNoGrouping(t *testing.T) {
	ageExpr := NewFieldExpr(opTestDesc.Fields[1])
	count := &CountAggState{}
	count.Init("count", ageExpr)
	sum := &SumAggState{}
	sum.Init("sum", ageExpr)
	maxAgg := &MaxAggState{}
	maxAgg.Init("max", ageExpr)
	minAgg := &MinAggState{}
	minAgg.Init("min", ageExpr)
	avg := &AvgAggState{}
	avg.Init("avg", ageExpr)

	agg := NewAggregator([]AggState{count, sum, maxAgg, minAgg, avg}, nil, opTestRows())
	got := drain(t, agg)
	if len(got) != 1 {
		t.Fatalf("ungrouped aggregate emitted %d rows, want exactly 1", len(got))
	}
	vals := got[0].Fields
	want := []int32{4, 170, 60, 25, 42}
	for i, w := range want {
		if vals[i].(IntField).Value != w {
			t.Errorf("aggregate %d = %v, want %d", i, vals[i], w)
		}
	}
}

func TestAggregateNoGroupingEmptyInput(t *testing.T) {
	ageExpr := NewFieldExpr(opTestDesc.Fields[1])
	count := &CountAggState{}
	count.Init("count", ageExpr)
	avg := &AvgAggState{}
	avg.Init("avg", ageExpr)

	empty := &sliceOperator{desc: opTestDesc}
	agg := NewAggregator([]AggState{count, avg}, nil, empty)
	got := drain(t, agg)
	if len(got) != 1 {
		t.Fatalf("ungrouped aggregate over empty input emitted %d rows, want 1", len(got))
	}
	if got[0].Fields[0].(IntField).Value != 0 {
		t.Errorf("count over empty input = %v, want 0", got[0].Fields[0])
	}
}

func TestAggregateGrouped(t *testing.T) {
	nameExpr := NewFieldExpr(opTestDesc.Fields[0])
	ageExpr := NewFieldExpr(opTestDesc.Fields[1])
	count := &CountAggState{}
	count.Init("count", ageExpr)

	agg := NewAggregator([]AggState{count}, []Expr{nameExpr}, opTestRows())
	got := drain(t, agg)
	if len(got) != 3 {
		t.Fatalf("grouped aggregate emitted %d groups, want 3", len(got))
	}
	counts := map[string]int32{}
	for _, tup := range got {
		counts[tup.Fields[0].(StringField).Value] = tup.Fields[1].(IntField).Value
	}
	if counts["sam"] != 2 || counts["joe"] != 1 || counts["ally"] != 1 {
		t.Errorf("group counts = %v, want sam:2 joe:1 ally:1", counts)
	}
}

func TestInsertAndDeleteOpsReportCounts(t *testing.T) {
	hf, bp := makeIntHeapFile(t, 10)
	td := hf.Descriptor()
	rows := &sliceOperator{desc: *td, tuples: []*Tuple{
		intTuple(td, 1, 2),
		intTuple(td, 3, 4),
	}}

	tid := NewTID()
	bp.BeginTransaction(tid)
	ins := NewInsertOp(hf, rows)
	it, err := ins.Iterator(tid)
	if err != nil {
		t.Fatalf("opening insert iterator: %v", err)
	}
	countTup, err := it()
	if err != nil {
		t.Fatalf("running insert: %v", err)
	}
	if countTup.Fields[0].(IntField).Value != 2 {
		t.Errorf("insert count = %v, want 2", countTup.Fields[0])
	}

	del := NewDeleteOp(hf, NewScanOperator(hf, ""))
	it, err = del.Iterator(tid)
	if err != nil {
		t.Fatalf("opening delete iterator: %v", err)
	}
	countTup, err = it()
	if err != nil {
		t.Fatalf("running delete: %v", err)
	}
	if countTup.Fields[0].(IntField).Value != 2 {
		t.Errorf("delete count = %v, want 2", countTup.Fields[0])
	}
	if left := scanAll(t, hf, tid); len(left) != 0 {
		t.Errorf("%d tuples survive the delete", len(left))
	}
}
