package godb

import (
	"github.com/tylertreat/BoomFilters"
)

// distinctFilterCapacity sizes the stable Bloom filter backing a DISTINCT
// projection. A stable filter ages out old entries once full rather than
// saturating, which is the right tradeoff for an unbounded result stream:
// a small, bounded false-positive rate (silently dropping a genuinely
// distinct row as though it were a duplicate) in exchange for O(1) memory
// instead of the O(n) a linear tuple scan would need.
const distinctFilterCapacity = 1_000_000

type Project struct {
	selectFields []Expr // required fields for parser
	outputNames  []string
	child        Operator
	distinct     bool
}

// Construct a projection operator. It saves the list of selected field, child,
// and the child op. Here, selectFields is a list of expressions that represents
// the fields to be selected, outputNames are names by which the selected fields
// are named (should be same length as selectFields; throws error if not),
// distinct is for noting whether the projection reports only distinct results,
// and child is the child operator.
func NewProjectOp(selectFields []Expr, outputNames []string, distinct bool, child Operator) (Operator, error) {
	if len(selectFields) != len(outputNames) {
		return nil, GoDBError{MalformedDataError, "selectFields and outputNames must be the same length"}
	}
	return &Project{selectFields: selectFields, outputNames: outputNames, child: child, distinct: distinct}, nil
}

// Return a TupleDescriptor for this projection. The returned descriptor should
// contain fields for each field in the constructor selectFields list with
// outputNames as specified in the constructor.
func (p *Project) Descriptor() *TupleDesc {
	fields := make([]FieldType, len(p.selectFields))
	for i, val := range p.selectFields {
		fieldType := val.GetExprType()
		fieldType.Fname = p.outputNames[i]
		fields[i] = fieldType
	}
	return &TupleDesc{Fields: fields}
}

// Project operator implementation. This function iterates over the results
// of the child iterator, projecting out the selected fields from each tuple.
// When distinct is set, duplicate projected rows are suppressed using a
// stable Bloom filter keyed by the tuple's serialised bytes, rather than an
// O(n) linear scan of every row seen so far.
func (p *Project) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	fields := make([]FieldType, len(p.selectFields))
	for i, val := range p.selectFields {
		fields[i] = val.GetExprType()
	}

	it, err := p.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	var seen *boom.StableBloomFilter
	if p.distinct {
		seen = boom.NewDefaultStableBloomFilter(distinctFilterCapacity, 0.01)
	}

	return func() (*Tuple, error) {
		for {
			tup, err := it()
			if err != nil {
				return nil, err
			}
			if tup == nil {
				return nil, nil
			}

			outTup, err := tup.project(fields)
			if err != nil {
				return nil, err
			}

			if p.distinct {
				key, err := outTup.tupleKey()
				if err != nil {
					return nil, err
				}
				if seen.TestAndAdd([]byte(key.(string))) {
					continue
				}
			}

			for i := range outTup.Desc.Fields {
				outTup.Desc.Fields[i].Fname = p.outputNames[i]
			}
			return outTup, nil
		}
	}, nil
}
