package godb

import "math"

// StringHistogram estimates selectivity over a string column by reducing
// each value to a 4-byte integer code -- the big-endian value of its
// first four bytes, NUL-padded if shorter -- and delegating to an
// IntHistogram spanning the full int32 domain, so both column kinds share
// one selectivity algorithm instead of maintaining two estimators.
type StringHistogram struct {
	ints *IntHistogram
}

// stringToIntCode packs the first four bytes of s, NUL-padded, into a
// big-endian int32 so lexical order among short common prefixes is
// preserved as numeric order.
func stringToIntCode(s string) int64 {
	var b [4]byte
	copy(b[:], s)
	code := int32(b[0])<<24 | int32(b[1])<<16 | int32(b[2])<<8 | int32(b[3])
	return int64(code)
}

// NewStringHistogram creates a StringHistogram backed by an IntHistogram
// of NumHistBins buckets spanning the entire int32 range.
func NewStringHistogram() (*StringHistogram, error) {
	h, err := NewIntHistogram(NumHistBins, math.MinInt32, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return &StringHistogram{ints: h}, nil
}

func (h *StringHistogram) AddValue(s string) {
	h.ints.AddValue(stringToIntCode(s))
}

func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	return h.ints.EstimateSelectivity(op, stringToIntCode(s))
}
