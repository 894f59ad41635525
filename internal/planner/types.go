package planner

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// ---------- Literals ----------

// literalType types a constant. Integers take the narrowest of INTEGER,
// BIGINT and HUGEINT; decimal literals are exact DECIMAL(p,s); exponent
// forms are DOUBLE.
func literalType(lit *core.Literal) (core.SQLType, core.Nullability) {
	switch lit.Type {
	case core.LiteralString:
		return core.Varchar(0), core.NotNull
	case core.LiteralBool:
		return core.Boolean(), core.NotNull
	case core.LiteralNull:
		return core.Unknown("NULL literal"), core.Nullable
	}

	v := lit.Value
	if strings.ContainsAny(v, "eE") {
		return core.Double(), core.NotNull
	}
	if whole, frac, ok := strings.Cut(v, "."); ok {
		digits := len(strings.TrimLeft(whole, "0")) + len(frac)
		return core.Decimal(max(digits, 1), len(frac)), core.NotNull
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n >= -1<<31 && n < 1<<31 {
			return core.Int(), core.NotNull
		}
		return core.BigInt(), core.NotNull
	}
	return core.HugeInt(), core.NotNull
}

// ---------- Operators ----------

// promote returns the common numeric type of a and b. Decimal wins, then
// the wider float, then the wider integer. Non-numeric operands keep a.
func promote(a, b core.SQLType) core.SQLType {
	switch {
	case a.IsUnknown():
		return b
	case b.IsUnknown():
		return a
	case !a.IsNumeric() || !b.IsNumeric():
		return a
	case a.Kind == core.TypeDecimal && b.Kind == core.TypeDecimal:
		return core.Decimal(max(a.Precision, b.Precision), max(a.Scale, b.Scale))
	case a.Kind == core.TypeDecimal:
		return a
	case b.Kind == core.TypeDecimal:
		return b
	case a.Kind == core.TypeFloat || b.Kind == core.TypeFloat:
		return core.Float(max(floatBits(a), floatBits(b)))
	case a.Kind == core.TypeHugeInt || b.Kind == core.TypeHugeInt:
		return core.HugeInt()
	}
	return core.Integer(max(a.Bits, b.Bits))
}

func floatBits(t core.SQLType) int {
	if t.Kind == core.TypeFloat {
		return t.Bits
	}
	return 32
}

// arithmetic drops decimal parameters: the result scale depends on the
// engine and the reconciliation ignores it anyway.
func arithmetic(t core.SQLType) core.SQLType {
	if t.Kind == core.TypeDecimal {
		return core.Decimal(0, 0)
	}
	return t
}

func binaryType(op token.TokenType, l, r core.SQLType) core.SQLType {
	switch op {
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE, token.AND, token.OR:
		return core.Boolean()
	case token.DPIPE:
		return core.Varchar(0)
	}

	if l.IsUnknown() || r.IsUnknown() {
		return core.Unknown("operand of unknown type")
	}

	switch op {
	case token.PLUS, token.MINUS:
		switch {
		case l.IsTemporal() && (r.Kind == core.TypeInterval || r.IsInteger()):
			return l
		case r.IsTemporal() && l.Kind == core.TypeInterval && op == token.PLUS:
			return r
		case op == token.MINUS && l.Kind == core.TypeDate && r.Kind == core.TypeDate:
			return core.BigInt()
		case op == token.MINUS && l.Kind == core.TypeTimestamp && r.IsTemporal():
			return core.Interval()
		case l.Kind == core.TypeInterval && r.Kind == core.TypeInterval:
			return l
		}
		return arithmetic(promote(l, r))
	case token.STAR:
		return arithmetic(promote(l, r))
	case token.SLASH:
		if l.Kind == core.TypeDecimal || r.Kind == core.TypeDecimal {
			return core.Decimal(0, 0)
		}
		if l.IsNumeric() && r.IsNumeric() {
			return core.Double()
		}
		return l
	case token.PERCENT:
		return l
	}
	return core.Unknown("operator " + op.String())
}

// ---------- Functions ----------

var aggregates = map[string]bool{
	"count": true, "count_if": true, "approx_count_distinct": true,
	"sum": true, "avg": true, "mean": true, "min": true, "max": true,
	"bool_and": true, "bool_or": true, "every": true,
	"string_agg": true, "listagg": true, "group_concat": true,
	"array_agg": true, "list": true,
	"any_value": true, "first": true, "last": true, "arg_min": true, "arg_max": true,
	"mode": true, "median": true, "product": true,
	"stddev": true, "stddev_pop": true, "stddev_samp": true,
	"variance": true, "var_pop": true, "var_samp": true,
}

// IsAggregate reports whether name (lowercase, unqualified) is an aggregate
// function when called without OVER.
func IsAggregate(name string) bool { return aggregates[name] }

var stringFuncs = map[string]bool{
	"upper": true, "lower": true, "trim": true, "ltrim": true, "rtrim": true,
	"replace": true, "substring": true, "substr": true, "left": true, "right": true,
	"lpad": true, "rpad": true, "reverse": true, "repeat": true, "initcap": true,
	"regexp_replace": true, "regexp_extract": true, "split_part": true,
	"md5": true, "sha256": true, "translate": true, "format": true, "printf": true,
	"strftime": true, "json_extract_string": true,
}

var datePartFuncs = map[string]bool{
	"date_part": true, "datepart": true, "extract": true,
	"year": true, "month": true, "day": true, "hour": true, "minute": true, "second": true,
	"dayofweek": true, "dayofyear": true, "week": true, "quarter": true, "epoch": true,
	"date_diff": true, "datediff": true, "date_sub": true,
}

// niladic lists functions that may be written without parentheses.
var niladic = map[string]bool{
	"current_date": true, "current_timestamp": true, "current_time": true, "localtimestamp": true,
}

func argAt(args []Expr, i int) (core.SQLType, core.Nullability) {
	if i >= len(args) {
		return core.Unknown("missing argument"), core.NullabilityUnknown
	}
	return args[i].Type(), args[i].Nullability()
}

func combineAll(args []Expr) core.Nullability {
	n := core.NotNull
	for _, a := range args {
		n = n.Combine(a.Nullability())
	}
	return n
}

// callType types a built-in function. ok is false for functions the
// planner does not know.
func callType(name string, args []Expr) (typ core.SQLType, null core.Nullability, ok bool) {
	a0, n0 := argAt(args, 0)

	switch name {
	// Aggregates
	case "count", "count_if", "approx_count_distinct":
		return core.BigInt(), core.NotNull, true
	case "sum":
		switch {
		case a0.IsInteger():
			return core.HugeInt(), core.Nullable, true
		case a0.Kind == core.TypeFloat:
			return core.Double(), core.Nullable, true
		}
		return a0, core.Nullable, true
	case "avg", "mean", "median":
		if a0.Kind == core.TypeDecimal {
			return core.Decimal(0, 0), core.Nullable, true
		}
		return core.Double(), core.Nullable, true
	case "min", "max", "any_value", "first", "last", "arg_min", "arg_max", "mode":
		return a0, n0, true
	case "bool_and", "bool_or", "every":
		return core.Boolean(), core.Nullable, true
	case "string_agg", "listagg", "group_concat":
		return core.Varchar(0), core.Nullable, true
	case "array_agg", "list":
		return core.ArrayOf(a0), core.Nullable, true
	case "product", "stddev", "stddev_pop", "stddev_samp", "variance", "var_pop", "var_samp":
		return core.Double(), core.Nullable, true

	// Window functions
	case "row_number", "rank", "dense_rank", "ntile":
		return core.BigInt(), core.NotNull, true
	case "percent_rank", "cume_dist":
		return core.Double(), core.NotNull, true
	case "lag", "lead", "first_value", "last_value", "nth_value":
		return a0, core.Nullable, true

	// Null handling
	case "coalesce", "ifnull":
		typ = core.Unknown("all arguments unknown")
		null = core.Nullable
		for _, a := range args {
			if typ.IsUnknown() {
				typ = a.Type()
			}
			switch a.Nullability() {
			case core.NotNull:
				null = core.NotNull
			case core.NullabilityUnknown:
				if null != core.NotNull {
					null = core.NullabilityUnknown
				}
			}
		}
		return typ, null, true
	case "nullif":
		return a0, core.Nullable, true
	case "if", "iif":
		t1, n1 := argAt(args, 1)
		t2, n2 := argAt(args, 2)
		if t1.IsUnknown() {
			t1 = t2
		}
		return t1, n1.Combine(n2), true
	case "greatest", "least":
		typ = a0
		for _, a := range args[min(1, len(args)):] {
			typ = promote(typ, a.Type())
		}
		return typ, combineAll(args), true

	// Strings
	case "concat", "concat_ws":
		return core.Varchar(0), core.NotNull, true
	case "length", "char_length", "character_length", "len", "strlen", "octet_length",
		"strpos", "position", "instr":
		return core.BigInt(), combineAll(args), true
	case "starts_with", "ends_with", "contains", "regexp_matches":
		return core.Boolean(), combineAll(args), true
	case "typeof":
		return core.Varchar(0), core.NotNull, true

	// Math
	case "abs", "sign", "round", "floor", "ceil", "ceiling", "trunc":
		return a0, combineAll(args), true
	case "sqrt", "cbrt", "ln", "log", "log10", "log2", "exp", "pow", "power":
		return core.Double(), combineAll(args), true
	case "random":
		return core.Double(), core.NotNull, true

	// Dates
	case "now", "current_timestamp", "get_current_timestamp", "localtimestamp":
		return core.Timestamp(), core.NotNull, true
	case "current_date", "today":
		return core.Date(), core.NotNull, true
	case "current_time":
		return core.Time(), core.NotNull, true
	case "date_trunc", "time_bucket":
		t1, n1 := argAt(args, 1)
		if !t1.IsTemporal() {
			t1 = core.Timestamp()
		}
		return t1, n1, true
	case "date_add":
		return a0, combineAll(args), true
	case "to_timestamp", "strptime", "make_timestamp":
		return core.Timestamp(), combineAll(args), true
	case "to_date", "make_date":
		return core.Date(), combineAll(args), true

	// Misc
	case "gen_random_uuid", "uuid":
		return core.UUID(), core.NotNull, true
	case "to_json", "json_object", "json_extract":
		return core.JSON(), combineAll(args), true
	case "list_value", "array":
		return core.ArrayOf(a0), core.NotNull, true
	}

	switch {
	case stringFuncs[name]:
		return core.Varchar(0), combineAll(args), true
	case datePartFuncs[name]:
		_, last := argAt(args, len(args)-1)
		return core.BigInt(), last, true
	}
	return core.Unknown("function " + name), core.NullabilityUnknown, false
}

// caseType unifies the result branches of a CASE expression.
func caseType(results []Expr, hasElse bool) (core.SQLType, core.Nullability) {
	typ := core.Unknown("all branches unknown")
	null := core.NotNull
	if !hasElse {
		null = core.Nullable
	}
	for _, r := range results {
		switch {
		case typ.IsUnknown():
			typ = r.Type()
		case typ.IsNumeric() && r.Type().IsNumeric():
			typ = arithmetic(promote(typ, r.Type()))
		}
		null = null.Combine(r.Nullability())
	}
	return typ, null
}
