package godb

import (
	"math"

	"golang.org/x/exp/constraints"
)

// minOf and maxOf predate Go 1.21's builtin min/max; kept as the generic
// bounds the two-pass min/max scan below uses, matching the toolchain
// this module was written against.
func minOf[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func maxOf[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Stats is what the planner consumes about a base table: how expensive a
// scan is, how many rows a predicate keeps, and how selective a single
// comparison is.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

// TableStats summarises one table: its size in pages and tuples, plus a
// per-column histogram (IntHistogram or StringHistogram by column type).
type TableStats struct {
	basePages  int
	baseTups   int
	histograms map[string]any
	tupleDesc  *TupleDesc
}

// tableMinMax is the first of the two scans ComputeTableStats makes: it
// finds each integer column's min and max so the second scan can build
// histograms with tight bucket ranges. Columns that never see a value
// collapse to [0, 0].
func tableMinMax(tid TransactionID, dbFile DBFile) ([]int64, []int64, error) {
	td := dbFile.Descriptor()
	mins := make([]int64, len(td.Fields))
	maxs := make([]int64, len(td.Fields))
	for i := range mins {
		mins[i] = math.MaxInt32
		maxs[i] = math.MinInt32
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, nil, err
	}
	for {
		tup, err := iter()
		if err != nil {
			return nil, nil, err
		}
		if tup == nil {
			break
		}
		for i, f := range td.Fields {
			if f.Ftype != IntType {
				continue
			}
			v := int64(tup.Fields[i].(IntField).Value)
			mins[i] = minOf(mins[i], v)
			maxs[i] = maxOf(maxs[i], v)
		}
	}
	for i := range mins {
		if mins[i] > maxs[i] {
			mins[i], maxs[i] = 0, 0
		}
	}
	return mins, maxs, nil
}

// ComputeTableStats scans dbFile twice under its own committing
// transaction: once for integer min/max, once to count tuples and fill
// the histograms (string histograms have a fixed domain and could be
// filled in one pass, but keeping both column kinds on the same schedule
// keeps the code uniform).
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()
	bp.BeginTransaction(tid)
	defer bp.CommitTransaction(tid)

	td := dbFile.Descriptor()

	mins, maxs, err := tableMinMax(tid, dbFile)
	if err != nil {
		return nil, err
	}

	hists := make(map[string]any, len(td.Fields))
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			h, err := NewIntHistogram(NumHistBins, mins[i], maxs[i])
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		case StringType:
			h, err := NewStringHistogram()
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = h
		default:
			return nil, GoDBError{TypeMismatchError, "cannot build statistics over a column of unknown type"}
		}
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}
	baseTups := 0
	for {
		tup, err := iter()
		if err != nil {
			return nil, err
		}
		if tup == nil {
			break
		}
		for i, f := range td.Fields {
			switch f.Ftype {
			case IntType:
				hists[f.Fname].(*IntHistogram).AddValue(int64(tup.Fields[i].(IntField).Value))
			case StringType:
				hists[f.Fname].(*StringHistogram).AddValue(tup.Fields[i].(StringField).Value)
			}
		}
		baseTups++
	}

	return &TableStats{
		basePages:  dbFile.NumPages(),
		baseTups:   baseTups,
		histograms: hists,
		tupleDesc:  td,
	}, nil
}

// EstimateScanCost prices a full sequential scan. Pages are read whole
// regardless of how full they are, and the factor of 2 reflects the
// nested-loop cost model: a table joined this way is read once per pass.
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.basePages*IOCostPerPage) * 2
}

// EstimateCardinality is the row count surviving a predicate of the given
// selectivity.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(t.baseTups) * selectivity)
}

// EstimateSelectivity dispatches (field op value) to the field's
// histogram. A field with no histogram estimates 1.0: assuming the
// predicate keeps everything is the safe direction for a cost model.
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	hist, ok := t.histograms[field]
	if !ok {
		DPrintf("no histogram for field %s, assuming selectivity 1.0", field)
		return 1.0, nil
	}

	switch h := hist.(type) {
	case *IntHistogram:
		iv, ok := value.(IntField)
		if !ok {
			return 1.0, GoDBError{TypeMismatchError, "integer column compared against a non-int value"}
		}
		return h.EstimateSelectivity(op, int64(iv.Value)), nil
	case *StringHistogram:
		sv, ok := value.(StringField)
		if !ok {
			return 1.0, GoDBError{TypeMismatchError, "string column compared against a non-string value"}
		}
		return h.EstimateSelectivity(op, sv.Value), nil
	}
	return 1.0, GoDBError{IncompatibleTypesError, "unexpected histogram type"}
}
