package godb

import (
	"fmt"
	"strconv"

	"github.com/xwb1989/sqlparser"
)

// Parse compiles sql into a physical plan rooted at an Operator, resolving
// table and column references against c. It supports a restricted subset
// of SQL -- the surface a teaching query engine needs, not a general SQL
// front end:
//
//	SELECT <cols|*> FROM <table> [JOIN <table> ON <col> = <col> ...] [WHERE <preds>] [ORDER BY <cols>] [LIMIT <n>]
//	INSERT INTO <table> SELECT ...
//	DELETE FROM <table> [WHERE <preds>]
//
// WHERE predicates are a chain of comparisons joined by AND; OR, subqueries,
// comma-separated FROM lists, and GROUP BY/aggregate pushdown are not
// accepted.
func Parse(c *Catalog, sql string) (Operator, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, GoDBError{ParseError, err.Error()}
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		return parseSelect(c, s)
	case *sqlparser.Insert:
		return parseInsert(c, s)
	case *sqlparser.Delete:
		return parseDelete(c, s)
	default:
		return nil, GoDBError{ParseError, fmt.Sprintf("unsupported statement %T", stmt)}
	}
}

func parseSelect(c *Catalog, s *sqlparser.Select) (Operator, error) {
	if len(s.GroupBy) > 0 {
		return nil, GoDBError{ParseError, "GROUP BY is not supported through the SQL front end"}
	}

	plan, err := parseTableExprs(c, s.From)
	if err != nil {
		return nil, err
	}

	if s.Where != nil {
		plan, err = applyWhere(plan, s.Where.Expr)
		if err != nil {
			return nil, err
		}
	}

	selectFields, outputNames, distinct, err := parseSelectExprs(plan.Descriptor(), s.SelectExprs, s.Distinct != "")
	if err != nil {
		return nil, err
	}
	proj, err := NewProjectOp(selectFields, outputNames, distinct, plan)
	if err != nil {
		return nil, err
	}
	plan = proj

	if len(s.OrderBy) > 0 {
		orderBy := make([]Expr, len(s.OrderBy))
		ascending := make([]bool, len(s.OrderBy))
		for i, o := range s.OrderBy {
			expr, err := resolveExpr(plan.Descriptor(), o.Expr)
			if err != nil {
				return nil, err
			}
			orderBy[i] = expr
			ascending[i] = o.Direction != sqlparser.DescScr
		}
		plan, err = NewOrderBy(orderBy, plan, ascending)
		if err != nil {
			return nil, err
		}
	}

	if s.Limit != nil && s.Limit.Rowcount != nil {
		n, err := exprAsConstInt(s.Limit.Rowcount)
		if err != nil {
			return nil, err
		}
		limitExpr := NewConstExpr(IntField{Value: n}, IntType)
		plan = NewLimitOp(limitExpr, plan)
	}

	return plan, nil
}

func parseInsert(c *Catalog, s *sqlparser.Insert) (Operator, error) {
	if s.Action != sqlparser.InsertStr {
		return nil, GoDBError{ParseError, fmt.Sprintf("unsupported insert action %s", s.Action)}
	}
	file, err := c.GetTable(s.Table.Name.String())
	if err != nil {
		return nil, err
	}

	sel, ok := s.Rows.(*sqlparser.Select)
	if !ok {
		return nil, GoDBError{ParseError, "only INSERT INTO ... SELECT ... is supported"}
	}
	child, err := parseSelect(c, sel)
	if err != nil {
		return nil, err
	}
	return NewInsertOp(file, child), nil
}

func parseDelete(c *Catalog, s *sqlparser.Delete) (Operator, error) {
	plan, err := parseTableExprs(c, s.TableExprs)
	if err != nil {
		return nil, err
	}
	scan, ok := plan.(*scanOperator)
	if !ok {
		return nil, GoDBError{ParseError, "DELETE supports a single table"}
	}
	if s.Where != nil {
		plan, err = applyWhere(plan, s.Where.Expr)
		if err != nil {
			return nil, err
		}
	}
	return NewDeleteOp(scan.file, plan), nil
}

func parseTableExprs(c *Catalog, tes sqlparser.TableExprs) (Operator, error) {
	var plan Operator
	for _, te := range tes {
		op, err := parseTableExpr(c, te)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			plan = op
			continue
		}
		return nil, GoDBError{ParseError, "comma-joins are not supported, use an explicit JOIN ... ON clause"}
	}
	if plan == nil {
		return nil, GoDBError{ParseError, "FROM clause must name at least one table"}
	}
	return plan, nil
}

func parseTableExpr(c *Catalog, te sqlparser.TableExpr) (Operator, error) {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		tn, ok := t.Expr.(sqlparser.TableName)
		if !ok {
			return nil, GoDBError{ParseError, "only simple table references are supported"}
		}
		file, err := c.GetTable(tn.Name.String())
		if err != nil {
			return nil, err
		}
		alias := t.As.String()
		if alias == "" {
			alias = tn.Name.String()
		}
		return NewScanOperator(file, alias), nil
	case *sqlparser.JoinTableExpr:
		left, err := parseTableExpr(c, t.LeftExpr)
		if err != nil {
			return nil, err
		}
		right, err := parseTableExpr(c, t.RightExpr)
		if err != nil {
			return nil, err
		}
		if t.Condition.On == nil {
			return nil, GoDBError{ParseError, "only ON equi-joins are supported"}
		}
		cmp, ok := t.Condition.On.(*sqlparser.ComparisonExpr)
		if !ok || cmp.Operator != sqlparser.EqualStr {
			return nil, GoDBError{ParseError, "join ON clause must be a single equality"}
		}
		leftDesc := left.Descriptor().merge(right.Descriptor())
		leftExpr, err := resolveExpr(leftDesc, cmp.Left)
		if err != nil {
			return nil, err
		}
		rightExpr, err := resolveExpr(leftDesc, cmp.Right)
		if err != nil {
			return nil, err
		}
		return NewJoin(left, leftExpr, right, rightExpr, BufferPoolDefaultPages)
	default:
		return nil, GoDBError{ParseError, fmt.Sprintf("unsupported table expression %T", te)}
	}
}

func applyWhere(plan Operator, expr sqlparser.Expr) (Operator, error) {
	preds, err := splitAnd(expr)
	if err != nil {
		return nil, err
	}
	for _, p := range preds {
		cmp, ok := p.(*sqlparser.ComparisonExpr)
		if !ok {
			return nil, GoDBError{ParseError, fmt.Sprintf("unsupported predicate %T", p)}
		}
		op, err := parseComparisonOp(cmp.Operator)
		if err != nil {
			return nil, err
		}
		desc := plan.Descriptor()
		field, err := resolveExpr(desc, cmp.Left)
		if err != nil {
			return nil, err
		}
		value, err := resolveExpr(desc, cmp.Right)
		if err != nil {
			return nil, err
		}
		f, err := NewFilter(value, op, field, plan)
		if err != nil {
			return nil, err
		}
		plan = f
	}
	return plan, nil
}

func splitAnd(expr sqlparser.Expr) ([]sqlparser.Expr, error) {
	and, ok := expr.(*sqlparser.AndExpr)
	if !ok {
		return []sqlparser.Expr{expr}, nil
	}
	left, err := splitAnd(and.Left)
	if err != nil {
		return nil, err
	}
	right, err := splitAnd(and.Right)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

func parseComparisonOp(op string) (BoolOp, error) {
	switch op {
	case sqlparser.EqualStr:
		return OpEq, nil
	case sqlparser.NotEqualStr:
		return OpNeq, nil
	case sqlparser.LessThanStr:
		return OpLt, nil
	case sqlparser.LessEqualStr:
		return OpLe, nil
	case sqlparser.GreaterThanStr:
		return OpGt, nil
	case sqlparser.GreaterEqualStr:
		return OpGe, nil
	case sqlparser.LikeStr:
		return OpLike, nil
	default:
		return 0, GoDBError{ParseError, fmt.Sprintf("unsupported comparison operator %s", op)}
	}
}

// resolveExpr translates a sqlparser expression into an Expr evaluable
// against tuples matching desc: a column reference, an integer/string
// literal, or a +/-/* combination of either.
func resolveExpr(desc *TupleDesc, expr sqlparser.Expr) (Expr, error) {
	switch e := expr.(type) {
	case *sqlparser.ColName:
		qualifier := e.Qualifier.Name.String()
		idx, err := findFieldInTd(FieldType{Fname: e.Name.String(), TableQualifier: qualifier, Ftype: UnknownType}, desc)
		if err != nil {
			return nil, err
		}
		return NewFieldExpr(desc.Fields[idx]), nil
	case *sqlparser.SQLVal:
		return resolveLiteral(e)
	case *sqlparser.BinaryExpr:
		left, err := resolveExpr(desc, e.Left)
		if err != nil {
			return nil, err
		}
		right, err := resolveExpr(desc, e.Right)
		if err != nil {
			return nil, err
		}
		switch e.Operator {
		case sqlparser.PlusStr:
			return NewArithExpr(PlusOp, left, right), nil
		case sqlparser.MinusStr:
			return NewArithExpr(MinusOp, left, right), nil
		case sqlparser.MultStr:
			return NewArithExpr(TimesOp, left, right), nil
		default:
			return nil, GoDBError{ParseError, fmt.Sprintf("unsupported arithmetic operator %s", e.Operator)}
		}
	default:
		return nil, GoDBError{ParseError, fmt.Sprintf("unsupported expression %T", expr)}
	}
}

func resolveLiteral(v *sqlparser.SQLVal) (Expr, error) {
	switch v.Type {
	case sqlparser.IntVal:
		n, err := strconv.ParseInt(string(v.Val), 10, 32)
		if err != nil {
			return nil, GoDBError{ParseError, err.Error()}
		}
		return NewConstExpr(IntField{Value: int32(n)}, IntType), nil
	case sqlparser.StrVal:
		return NewConstExpr(StringField{Value: string(v.Val)}, StringType), nil
	default:
		return nil, GoDBError{ParseError, "unsupported literal kind"}
	}
}

func exprAsConstInt(expr sqlparser.Expr) (int32, error) {
	v, ok := expr.(*sqlparser.SQLVal)
	if !ok || v.Type != sqlparser.IntVal {
		return 0, GoDBError{ParseError, "expected an integer literal"}
	}
	n, err := strconv.ParseInt(string(v.Val), 10, 32)
	if err != nil {
		return 0, GoDBError{ParseError, err.Error()}
	}
	return int32(n), nil
}

func parseSelectExprs(desc *TupleDesc, exprs sqlparser.SelectExprs, distinct bool) ([]Expr, []string, bool, error) {
	var fields []Expr
	var names []string
	for _, se := range exprs {
		switch s := se.(type) {
		case *sqlparser.StarExpr:
			for _, f := range desc.Fields {
				fields = append(fields, NewFieldExpr(f))
				names = append(names, f.Fname)
			}
		case *sqlparser.AliasedExpr:
			expr, err := resolveExpr(desc, s.Expr)
			if err != nil {
				return nil, nil, false, err
			}
			name := s.As.String()
			if name == "" {
				name = expr.GetExprType().Fname
			}
			fields = append(fields, expr)
			names = append(names, name)
		default:
			return nil, nil, false, GoDBError{ParseError, fmt.Sprintf("unsupported select expression %T", se)}
		}
	}
	return fields, names, distinct, nil
}
