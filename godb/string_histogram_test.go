package godb

import "testing"

func TestStringToIntCodeOrdering(t *testing.T) {
	// The 4-byte code preserves lexical order of short prefixes.
	cases := [][2]string{
		{"a", "b"},
		{"abc", "abd"},
		{"ab", "abc"},
		{"", "a"},
	}
	for _, c := range cases {
		if stringToIntCode(c[0]) >= stringToIntCode(c[1]) {
			t.Errorf("code(%q) >= code(%q), lexical order not preserved", c[0], c[1])
		}
	}
	// Only the first four bytes matter.
	if stringToIntCode("abcdef") != stringToIntCode("abcdzz") {
		t.Error("codes differ past the fourth byte")
	}
}

func TestStringHistogramSelectivity(t *testing.T) {
	h, err := NewStringHistogram()
	if err != nil {
		t.Fatalf("creating histogram: %v", err)
	}
	words := []string{"apple", "banana", "cherry", "damson", "elder", "fig"}
	for _, w := range words {
		h.AddValue(w)
	}

	for _, op := range []BoolOp{OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe} {
		for _, w := range []string{"", "apple", "mango", "zz"} {
			sel := h.EstimateSelectivity(op, w)
			if sel < 0 || sel > 1 {
				t.Errorf("selectivity(%v, %q) = %v, outside [0, 1]", op, w, sel)
			}
		}
	}

	lt := h.EstimateSelectivity(OpLt, "cherry")
	gt := h.EstimateSelectivity(OpGt, "cherry")
	if lt <= 0 || lt >= 1 {
		t.Errorf("LESS_THAN cherry = %v, expected something strictly between 0 and 1", lt)
	}
	if gt <= 0 || gt >= 1 {
		t.Errorf("GREATER_THAN cherry = %v, expected something strictly between 0 and 1", gt)
	}
}
