package godb

import "fmt"

// Expr is anything that can be evaluated against a Tuple to produce a
// DBValue: a field reference, a constant, or an arithmetic combination of
// either. Operators build their output schema from GetExprType without
// ever evaluating the expression.
type Expr interface {
	EvalExpr(t *Tuple) (DBValue, error)
	GetExprType() FieldType
}

// FieldExpr reads one named field out of a tuple.
type FieldExpr struct {
	field FieldType
}

func NewFieldExpr(field FieldType) *FieldExpr {
	return &FieldExpr{field: field}
}

func (e *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	idx, err := findFieldInTd(e.field, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.getField(idx)
}

func (e *FieldExpr) GetExprType() FieldType {
	return e.field
}

// ConstExpr evaluates to the same value no matter what tuple it's applied
// to -- a literal appearing in a WHERE clause or an arithmetic expression.
type ConstExpr struct {
	val   DBValue
	etype DBType
}

func NewConstExpr(val DBValue, etype DBType) *ConstExpr {
	return &ConstExpr{val: val, etype: etype}
}

func (e *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return e.val, nil
}

func (e *ConstExpr) GetExprType() FieldType {
	return FieldType{Fname: "", Ftype: e.etype}
}

// ArithOp is an arithmetic combinator usable in a SELECT projection, e.g.
// "SELECT a + b FROM t".
type ArithOp int

const (
	PlusOp ArithOp = iota
	MinusOp
	TimesOp
)

func (op ArithOp) String() string {
	switch op {
	case PlusOp:
		return "+"
	case MinusOp:
		return "-"
	case TimesOp:
		return "*"
	default:
		return "?"
	}
}

// ArithExpr combines two IntType sub-expressions with an ArithOp.
type ArithExpr struct {
	op          ArithOp
	left, right Expr
}

func NewArithExpr(op ArithOp, left, right Expr) *ArithExpr {
	return &ArithExpr{op: op, left: left, right: right}
}

func (e *ArithExpr) EvalExpr(t *Tuple) (DBValue, error) {
	lv, err := e.left.EvalExpr(t)
	if err != nil {
		return nil, err
	}
	rv, err := e.right.EvalExpr(t)
	if err != nil {
		return nil, err
	}
	li, ok := lv.(IntField)
	if !ok {
		return nil, GoDBError{TypeMismatchError, "arithmetic expression requires int operands"}
	}
	ri, ok := rv.(IntField)
	if !ok {
		return nil, GoDBError{TypeMismatchError, "arithmetic expression requires int operands"}
	}
	switch e.op {
	case PlusOp:
		return IntField{Value: li.Value + ri.Value}, nil
	case MinusOp:
		return IntField{Value: li.Value - ri.Value}, nil
	case TimesOp:
		return IntField{Value: li.Value * ri.Value}, nil
	default:
		return nil, GoDBError{IllegalOperationError, "unknown arithmetic operator"}
	}
}

func (e *ArithExpr) GetExprType() FieldType {
	left := e.left.GetExprType()
	return FieldType{Fname: fmt.Sprintf("(%s %s %s)", left.Fname, e.op, e.right.GetExprType().Fname), Ftype: IntType}
}

// evalPred applies op to the values expr1 and expr2 evaluate to on t.
func evalPred(t *Tuple, expr1, expr2 Expr, op BoolOp) (bool, error) {
	v1, err := expr1.EvalExpr(t)
	if err != nil {
		return false, err
	}
	v2, err := expr2.EvalExpr(t)
	if err != nil {
		return false, err
	}
	return v1.EvalPred(v2, op), nil
}
