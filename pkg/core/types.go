package core

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind is the family of a SQLType.
type TypeKind int

// Type kinds.
const (
	TypeUnknown TypeKind = iota
	TypeBoolean
	TypeInteger
	TypeHugeInt
	TypeFloat
	TypeDecimal
	TypeString
	TypeDate
	TypeTime
	TypeTimestamp
	TypeInterval
	TypeBinary
	TypeJSON
	TypeUUID
	TypeArray
	TypeStruct
	TypeMap
)

// SQLType is a resolved column type. Only the fields relevant to Kind are set.
type SQLType struct {
	Kind      TypeKind
	Bits      int         // Integer: 8, 16, 32, 64. Float: 32, 64.
	Precision int         // Decimal precision, 0 when unspecified
	Scale     int         // Decimal scale
	Length    int         // String max length, 0 when unbounded
	Elem      *SQLType    // Array element or Map value
	Key       *SQLType    // Map key
	Fields    []TypeField // Struct fields
	Reason    string      // Unknown: why the type could not be resolved
}

// TypeField is a named struct member.
type TypeField struct {
	Name string
	Type SQLType
}

// ---------- Constructors ----------

// Boolean returns the BOOLEAN type.
func Boolean() SQLType { return SQLType{Kind: TypeBoolean} }

// Integer returns an integer type with the given bit width.
func Integer(bits int) SQLType { return SQLType{Kind: TypeInteger, Bits: bits} }

// Int returns INTEGER (32 bit).
func Int() SQLType { return Integer(32) }

// BigInt returns BIGINT (64 bit).
func BigInt() SQLType { return Integer(64) }

// HugeInt returns HUGEINT (128 bit).
func HugeInt() SQLType { return SQLType{Kind: TypeHugeInt} }

// Float returns a floating point type with the given bit width.
func Float(bits int) SQLType { return SQLType{Kind: TypeFloat, Bits: bits} }

// Double returns DOUBLE.
func Double() SQLType { return Float(64) }

// Decimal returns DECIMAL(p,s). Zero precision means unspecified.
func Decimal(precision, scale int) SQLType {
	return SQLType{Kind: TypeDecimal, Precision: precision, Scale: scale}
}

// Varchar returns VARCHAR(n). Zero means unbounded.
func Varchar(n int) SQLType { return SQLType{Kind: TypeString, Length: n} }

// Date returns DATE.
func Date() SQLType { return SQLType{Kind: TypeDate} }

// Time returns TIME.
func Time() SQLType { return SQLType{Kind: TypeTime} }

// Timestamp returns TIMESTAMP.
func Timestamp() SQLType { return SQLType{Kind: TypeTimestamp} }

// Interval returns INTERVAL.
func Interval() SQLType { return SQLType{Kind: TypeInterval} }

// Binary returns BINARY.
func Binary() SQLType { return SQLType{Kind: TypeBinary} }

// JSON returns JSON.
func JSON() SQLType { return SQLType{Kind: TypeJSON} }

// UUID returns UUID.
func UUID() SQLType { return SQLType{Kind: TypeUUID} }

// ArrayOf returns elem[].
func ArrayOf(elem SQLType) SQLType { return SQLType{Kind: TypeArray, Elem: &elem} }

// MapOf returns MAP(key, value).
func MapOf(key, value SQLType) SQLType { return SQLType{Kind: TypeMap, Key: &key, Elem: &value} }

// StructOf returns STRUCT(fields...).
func StructOf(fields ...TypeField) SQLType { return SQLType{Kind: TypeStruct, Fields: fields} }

// Unknown returns an unresolved type carrying the reason.
func Unknown(reason string) SQLType { return SQLType{Kind: TypeUnknown, Reason: reason} }

// ---------- Predicates ----------

// IsUnknown reports whether the type could not be resolved.
func (t SQLType) IsUnknown() bool { return t.Kind == TypeUnknown }

// IsNumeric reports whether the type is an integer, float or decimal.
func (t SQLType) IsNumeric() bool {
	switch t.Kind {
	case TypeInteger, TypeHugeInt, TypeFloat, TypeDecimal:
		return true
	}
	return false
}

// IsInteger reports whether the type is an integer of any width.
func (t SQLType) IsInteger() bool { return t.Kind == TypeInteger || t.Kind == TypeHugeInt }

// IsString reports whether the type is a character string.
func (t SQLType) IsString() bool { return t.Kind == TypeString }

// IsTemporal reports whether the type is a date, time or timestamp.
func (t SQLType) IsTemporal() bool {
	return t.Kind == TypeDate || t.Kind == TypeTime || t.Kind == TypeTimestamp
}

// CompatibleWith reports whether values of the two types can be compared or
// combined without an explicit cast. Unknown is compatible with everything.
func (t SQLType) CompatibleWith(o SQLType) bool {
	if t.IsUnknown() || o.IsUnknown() {
		return true
	}
	if t.IsNumeric() && o.IsNumeric() {
		return true
	}
	switch {
	case t.Kind == o.Kind && t.Kind == TypeArray:
		return t.Elem.CompatibleWith(*o.Elem)
	case t.Kind == o.Kind && t.Kind == TypeMap:
		return t.Key.CompatibleWith(*o.Key) && t.Elem.CompatibleWith(*o.Elem)
	case t.Kind == o.Kind && t.Kind == TypeStruct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !strings.EqualFold(t.Fields[i].Name, o.Fields[i].Name) ||
				!t.Fields[i].Type.CompatibleWith(o.Fields[i].Type) {
				return false
			}
		}
		return true
	case t.Kind == o.Kind:
		return true
	}
	pair := func(a, b TypeKind) bool {
		return (t.Kind == a && o.Kind == b) || (t.Kind == b && o.Kind == a)
	}
	return pair(TypeDate, TypeTimestamp) ||
		pair(TypeJSON, TypeString) ||
		pair(TypeUUID, TypeString)
}

// SameAs is the strict equality used when a declared type is checked
// against an inferred one. Integer and float widths must match; decimal
// precision and string length are ignored. Unknown matches anything.
func (t SQLType) SameAs(o SQLType) bool {
	if t.IsUnknown() || o.IsUnknown() {
		return true
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TypeInteger, TypeFloat:
		return t.Bits == o.Bits
	case TypeArray:
		return t.Elem.SameAs(*o.Elem)
	case TypeMap:
		return t.Key.SameAs(*o.Key) && t.Elem.SameAs(*o.Elem)
	case TypeStruct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !strings.EqualFold(t.Fields[i].Name, o.Fields[i].Name) ||
				!t.Fields[i].Type.SameAs(o.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

// String returns the canonical SQL spelling of the type.
func (t SQLType) String() string {
	switch t.Kind {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		switch t.Bits {
		case 8:
			return "TINYINT"
		case 16:
			return "SMALLINT"
		case 64:
			return "BIGINT"
		default:
			return "INTEGER"
		}
	case TypeHugeInt:
		return "HUGEINT"
	case TypeFloat:
		if t.Bits == 32 {
			return "FLOAT"
		}
		return "DOUBLE"
	case TypeDecimal:
		switch {
		case t.Precision > 0 && t.Scale > 0:
			return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
		case t.Precision > 0:
			return fmt.Sprintf("DECIMAL(%d)", t.Precision)
		}
		return "DECIMAL"
	case TypeString:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "VARCHAR"
	case TypeDate:
		return "DATE"
	case TypeTime:
		return "TIME"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeInterval:
		return "INTERVAL"
	case TypeBinary:
		return "BINARY"
	case TypeJSON:
		return "JSON"
	case TypeUUID:
		return "UUID"
	case TypeArray:
		return t.Elem.String() + "[]"
	case TypeMap:
		return fmt.Sprintf("MAP(%s, %s)", t.Key, t.Elem)
	case TypeStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + " " + f.Type.String()
		}
		return "STRUCT(" + strings.Join(parts, ", ") + ")"
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (t SQLType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SQLType) UnmarshalText(b []byte) error {
	*t = ParseSQLType(string(b))
	return nil
}

// ---------- Parsing ----------

// ParseSQLType maps a declared type name to a SQLType. Unrecognized names
// yield Unknown rather than an error so a bad declaration never blocks analysis.
func ParseSQLType(s string) SQLType {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Unknown("no type declared")
	}
	upper := strings.ToUpper(raw)

	if strings.HasSuffix(upper, "[]") {
		return ArrayOf(ParseSQLType(raw[:len(raw)-2]))
	}

	base, args := splitTypeArgs(raw)
	base = strings.ToUpper(strings.Join(strings.Fields(base), " "))

	switch base {
	case "BOOL", "BOOLEAN", "LOGICAL":
		return Boolean()
	case "TINYINT", "INT1", "UTINYINT":
		return Integer(8)
	case "SMALLINT", "INT2", "SHORT", "USMALLINT":
		return Integer(16)
	case "INT", "INTEGER", "INT4", "SIGNED", "UINTEGER", "MEDIUMINT":
		return Integer(32)
	case "BIGINT", "INT8", "LONG", "UBIGINT":
		return Integer(64)
	case "HUGEINT", "INT128", "UHUGEINT":
		return HugeInt()
	case "FLOAT", "REAL", "FLOAT4":
		return Float(32)
	case "DOUBLE", "FLOAT8", "DOUBLE PRECISION":
		return Float(64)
	case "DECIMAL", "NUMERIC", "NUMBER":
		p, s := 0, 0
		if len(args) > 0 {
			p, _ = strconv.Atoi(strings.TrimSpace(args[0]))
		}
		if len(args) > 1 {
			s, _ = strconv.Atoi(strings.TrimSpace(args[1]))
		}
		return Decimal(p, s)
	case "VARCHAR", "TEXT", "STRING", "CHAR", "BPCHAR", "CHARACTER", "CHARACTER VARYING", "NVARCHAR":
		n := 0
		if len(args) > 0 {
			n, _ = strconv.Atoi(strings.TrimSpace(args[0]))
		}
		return Varchar(n)
	case "DATE":
		return Date()
	case "TIME", "TIME WITHOUT TIME ZONE":
		return Time()
	case "TIMESTAMP", "DATETIME", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITHOUT TIME ZONE":
		return Timestamp()
	case "INTERVAL":
		return Interval()
	case "BLOB", "BINARY", "BYTEA", "VARBINARY", "BYTES":
		return Binary()
	case "JSON", "JSONB":
		return JSON()
	case "UUID":
		return UUID()
	case "MAP":
		if len(args) == 2 {
			return MapOf(ParseSQLType(args[0]), ParseSQLType(args[1]))
		}
	case "STRUCT", "ROW":
		fields := make([]TypeField, 0, len(args))
		for _, a := range args {
			name, typ, ok := strings.Cut(strings.TrimSpace(a), " ")
			if !ok {
				return Unknown("malformed struct field: " + a)
			}
			fields = append(fields, TypeField{Name: name, Type: ParseSQLType(typ)})
		}
		return StructOf(fields...)
	case "ARRAY", "LIST":
		if len(args) == 1 {
			return ArrayOf(ParseSQLType(args[0]))
		}
	}
	return Unknown("unrecognized type: " + raw)
}

// splitTypeArgs splits "DECIMAL(10, 2)" into "DECIMAL" and ["10", " 2"],
// respecting nested parentheses and angle brackets.
func splitTypeArgs(s string) (string, []string) {
	open := strings.IndexAny(s, "(<")
	if open < 0 {
		return s, nil
	}
	closeCh := byte(')')
	if s[open] == '<' {
		closeCh = '>'
	}
	end := strings.LastIndexByte(s, closeCh)
	if end < open {
		return s, nil
	}
	inner := s[open+1 : end]
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(', '<':
			depth++
		case ')', '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, inner[start:])
	return s[:open], args
}
