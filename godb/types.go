package godb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// DBType is the type of a tuple field: IntType or StringType. UnknownType
// is used internally during parsing, when a field's type can't yet be
// determined from context.
type DBType int

const (
	IntType DBType = iota
	StringType
	UnknownType
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return "unknown"
	}
}

// width returns the fixed, on-disk byte width of a value of type t.
// Integers are 4-byte big-endian; strings are a 4-byte big-endian length
// prefix followed by StringMaxSize NUL-padded bytes.
func (t DBType) width() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		return 4 + StringMaxSize
	default:
		return 0
	}
}

// BoolOp is a comparison or pattern-match operator usable in a predicate.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpLike
)

func (op BoolOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLike:
		return "LIKE"
	default:
		return "?"
	}
}

// FieldType names one column of a TupleDesc: its name, the table it came
// from (empty if the field is anonymous or unqualified), and its DBType.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the schema of a Tuple: an ordered, non-empty list of
// FieldTypes. It is immutable once constructed; every mutating-looking
// method (copy, merge, setTableAlias) returns a new value.
type TupleDesc struct {
	Fields []FieldType
}

// NewTupleDesc builds a TupleDesc from parallel type/name slices.
// Anonymous fields should pass an empty name.
func NewTupleDesc(types []DBType, names []string) (*TupleDesc, error) {
	if len(types) == 0 {
		return nil, GoDBError{MalformedDataError, "a TupleDesc must have at least one field"}
	}
	if len(names) != len(types) {
		return nil, GoDBError{MalformedDataError, "types and names must have the same length"}
	}
	fields := make([]FieldType, len(types))
	for i := range types {
		fields[i] = FieldType{Fname: names[i], Ftype: types[i]}
	}
	return &TupleDesc{Fields: fields}, nil
}

// size is the total serialised byte width of a tuple with this descriptor.
func (td *TupleDesc) size() int {
	w := 0
	for _, f := range td.Fields {
		w += f.Ftype.width()
	}
	return w
}

// bytesPerTuple is an alias for size, named to match the on-disk layout
// language used by heap_page.go's slot-count arithmetic.
func (td *TupleDesc) bytesPerTuple() int {
	return td.size()
}

// fieldNameToIndex returns the first index whose field name equals name.
// An empty name never matches an anonymous field, so callers can't
// accidentally select an unnamed column this way.
func (td *TupleDesc) fieldNameToIndex(name string) (int, error) {
	if name == "" {
		return -1, GoDBError{TupleNotFoundError, "cannot look up the empty field name"}
	}
	for i, f := range td.Fields {
		if f.Fname == name {
			return i, nil
		}
	}
	return -1, GoDBError{TupleNotFoundError, fmt.Sprintf("no field named %q", name)}
}

// findFieldInTd finds the best match for field within desc: the same name
// and (if field.Ftype is known) the same type, preferring a match on
// TableQualifier when field specifies one.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname != field.Fname {
			continue
		}
		if field.Ftype != UnknownType && f.Ftype != field.Ftype {
			continue
		}
		if field.TableQualifier == "" && best != -1 {
			return 0, GoDBError{AmbiguousNameError, fmt.Sprintf("field name %s is ambiguous", f.Fname)}
		}
		if f.TableQualifier == field.TableQualifier || best == -1 {
			best = i
		}
	}
	if best == -1 {
		return -1, GoDBError{TupleNotFoundError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}
	}
	return best, nil
}

// equals is structural equality over the ordered field list.
func (td *TupleDesc) equals(other *TupleDesc) bool {
	if len(td.Fields) != len(other.Fields) {
		return false
	}
	for i := range td.Fields {
		if td.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// copy returns an independent TupleDesc with the same fields.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// setTableAlias returns a copy of td with every field's TableQualifier set
// to alias. Used by the parser when a table is referenced "FROM t AS x".
func (td *TupleDesc) setTableAlias(alias string) *TupleDesc {
	out := td.copy()
	for i := range out.Fields {
		out.Fields[i].TableQualifier = alias
	}
	return out
}

// merge returns a new TupleDesc whose fields are td's followed by
// other's: len(result.Fields) == len(td.Fields) + len(other.Fields).
func (td *TupleDesc) merge(other *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(td.Fields)+len(other.Fields))
	fields = append(fields, td.Fields...)
	fields = append(fields, other.Fields...)
	return &TupleDesc{Fields: fields}
}

func (td *TupleDesc) HeaderString(aligned bool) string {
	var b strings.Builder
	for i, f := range td.Fields {
		name := f.Fname
		if f.TableQualifier != "" {
			name = f.TableQualifier + "." + name
		}
		if i > 0 {
			if aligned {
				b.WriteString(" | ")
			} else {
				b.WriteString(",")
			}
		}
		b.WriteString(name)
	}
	return b.String()
}

// ================== Field values ======================

// DBValue is the interface every stored field value (IntField,
// StringField) implements.
type DBValue interface {
	EvalPred(other DBValue, op BoolOp) bool
}

// IntField is a 4-byte signed integer value.
type IntField struct {
	Value int32
}

// StringField is a string value truncated to at most StringMaxSize bytes
// when serialised.
type StringField struct {
	Value string
}

func (f IntField) EvalPred(other DBValue, op BoolOp) bool {
	o, ok := other.(IntField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == o.Value
	case OpNeq:
		return f.Value != o.Value
	case OpLt:
		return f.Value < o.Value
	case OpLe:
		return f.Value <= o.Value
	case OpGt:
		return f.Value > o.Value
	case OpGe:
		return f.Value >= o.Value
	default:
		return false
	}
}

func (f StringField) EvalPred(other DBValue, op BoolOp) bool {
	o, ok := other.(StringField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == o.Value
	case OpNeq:
		return f.Value != o.Value
	case OpLt:
		return f.Value < o.Value
	case OpLe:
		return f.Value <= o.Value
	case OpGt:
		return f.Value > o.Value
	case OpGe:
		return f.Value >= o.Value
	case OpLike:
		return strings.Contains(f.Value, o.Value)
	default:
		return false
	}
}

// recordID identifies where a Tuple lives. Its only implementation is
// heapFileRid, but it is kept as an interface so other file organisations
// (were one ever added) would not need to change Tuple's shape.
type recordID interface{}

// Tuple is a row: its schema plus exactly len(Desc.Fields) values, plus an
// optional RecordId recording where it was read from.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    recordID
}

// NewTuple allocates a Tuple with all fields unset (nil).
func NewTuple(desc TupleDesc) *Tuple {
	return &Tuple{Desc: desc, Fields: make([]DBValue, len(desc.Fields))}
}

// setField assigns the i'th field, checking it against the descriptor's
// declared type.
func (t *Tuple) setField(i int, v DBValue) error {
	if i < 0 || i >= len(t.Fields) {
		return GoDBError{TupleNotFoundError, "field index out of range"}
	}
	switch t.Desc.Fields[i].Ftype {
	case IntType:
		if _, ok := v.(IntField); !ok {
			return GoDBError{TypeMismatchError, "expected IntField"}
		}
	case StringType:
		if _, ok := v.(StringField); !ok {
			return GoDBError{TypeMismatchError, "expected StringField"}
		}
	}
	t.Fields[i] = v
	return nil
}

// getField returns the i'th field value.
func (t *Tuple) getField(i int) (DBValue, error) {
	if i < 0 || i >= len(t.Fields) {
		return nil, GoDBError{TupleNotFoundError, "field index out of range"}
	}
	return t.Fields[i], nil
}

func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.BigEndian, f.Value)
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	s := f.Value
	if len(s) > StringMaxSize {
		s = s[:StringMaxSize]
	}
	padded := make([]byte, StringMaxSize)
	copy(padded, []byte(s))
	if err := binary.Write(b, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := b.Write(padded)
	return err
}

// writeTo serialises every field of t, in order, into b using exactly
// t.Desc.size() bytes.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		default:
			return GoDBError{MalformedDataError, fmt.Sprintf("field %d has unsupported type %T", i, f)}
		}
	}
	return nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int32
	if err := binary.Read(b, binary.BigEndian, &v); err != nil {
		return IntField{}, GoDBError{MalformedDataError, "truncated int field"}
	}
	return IntField{Value: v}, nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	var length int32
	if err := binary.Read(b, binary.BigEndian, &length); err != nil {
		return StringField{}, GoDBError{MalformedDataError, "truncated string length prefix"}
	}
	buf := make([]byte, StringMaxSize)
	if n, err := b.Read(buf); err != nil || n != StringMaxSize {
		return StringField{}, GoDBError{MalformedDataError, "truncated string field"}
	}
	if length < 0 || int(length) > StringMaxSize {
		return StringField{}, GoDBError{MalformedDataError, "corrupt string length prefix"}
	}
	return StringField{Value: string(buf[:length])}, nil
}

// readTupleFrom is the inverse of writeTo: it consumes exactly
// desc.size() bytes from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc, Fields: make([]DBValue, len(desc.Fields))}
	for i, f := range desc.Fields {
		switch f.Ftype {
		case IntType:
			v, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			t.Fields[i] = v
		case StringType:
			v, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			t.Fields[i] = v
		default:
			return nil, GoDBError{MalformedDataError, "unknown field type in descriptor"}
		}
	}
	return t, nil
}

// equals compares descriptor and field values. The RecordId is not part
// of a tuple's identity: the same row read twice from disk compares equal
// even though only one copy carries a Rid.
func (t *Tuple) equals(other *Tuple) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.Desc.equals(&other.Desc) {
		return false
	}
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples concatenates two tuples' fields and descriptors.
func joinTuples(t1, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	desc := t1.Desc.merge(&t2.Desc)
	fields := make([]DBValue, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{Desc: *desc, Fields: fields}
}

// project returns a new Tuple containing only the named fields, preferring
// a TableQualifier match but falling back to a name-only match.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	out := &Tuple{Desc: TupleDesc{}, Fields: []DBValue{}}
	for _, want := range fields {
		idx := -1
		for i, f := range t.Desc.Fields {
			if f.Fname == want.Fname && f.TableQualifier == want.TableQualifier {
				idx = i
				break
			}
		}
		if idx == -1 {
			for i, f := range t.Desc.Fields {
				if f.Fname == want.Fname {
					idx = i
					break
				}
			}
		}
		if idx == -1 {
			return nil, GoDBError{TupleNotFoundError, fmt.Sprintf("field %s.%s not found", want.TableQualifier, want.Fname)}
		}
		out.Fields = append(out.Fields, t.Fields[idx])
		out.Desc.Fields = append(out.Desc.Fields, t.Desc.Fields[idx])
	}
	return out, nil
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

func compareFields(v1, v2 DBValue) (orderByState, error) {
	switch a := v1.(type) {
	case IntField:
		b, ok := v2.(IntField)
		if !ok {
			return OrderedEqual, GoDBError{IncompatibleTypesError, "cannot compare IntField to non-int"}
		}
		switch {
		case a.Value < b.Value:
			return OrderedLessThan, nil
		case a.Value > b.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	case StringField:
		b, ok := v2.(StringField)
		if !ok {
			return OrderedEqual, GoDBError{IncompatibleTypesError, "cannot compare StringField to non-string"}
		}
		switch {
		case a.Value < b.Value:
			return OrderedLessThan, nil
		case a.Value > b.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	default:
		return OrderedEqual, GoDBError{IncompatibleTypesError, fmt.Sprintf("unsupported comparison value %T", v1)}
	}
}

// compareField evaluates expr on t and t2 and compares the results.
func (t *Tuple) compareField(t2 *Tuple, expr Expr) (orderByState, error) {
	v1, err := expr.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	v2, err := expr.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(v1, v2)
}

// tupleKey returns a value usable as a map key that uniquely identifies a
// tuple's serialised contents. Grouping and aggregation key on it.
func (t *Tuple) tupleKey() (any, error) {
	var buf bytes.Buffer
	if err := t.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.String(), nil
}

func (t *Tuple) PrettyPrintString() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			parts[i] = fmt.Sprintf("%d", v.Value)
		case StringField:
			parts[i] = v.Value
		}
	}
	return strings.Join(parts, ", ")
}
