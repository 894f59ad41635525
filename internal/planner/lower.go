package planner

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/format"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

// Lowering order for one SELECT core:
//
//	FROM -> WHERE (Filter) -> GROUP BY (Aggregate) -> HAVING (Filter)
//	     -> select list (Project) -> ORDER BY (Sort) -> LIMIT/OFFSET (Limit)

type cteDef struct {
	op    Op
	names []string
}

type lowerer struct {
	res       Resolver
	self      string
	externals map[string]bool
	ctes      map[string]cteDef
	relations map[string]bool
}

func newLowerer(req Request) *lowerer {
	l := &lowerer{
		res:       req.Resolver,
		self:      fold(req.Node),
		externals: make(map[string]bool, len(req.Externals)),
		ctes:      map[string]cteDef{},
		relations: map[string]bool{},
	}
	for _, name := range req.Externals {
		l.externals[fold(name)] = true
	}
	return l
}

func fold(s string) string { return cases.Fold().String(s) }

// aggState collects the aggregate calls of one SELECT core.
type aggState struct {
	calls []*Call
}

// ---------- Statements ----------

func (l *lowerer) stmt(stmt *core.SelectStmt, outer *scope) (Op, error) {
	if stmt == nil || stmt.Body == nil {
		return nil, fmt.Errorf("%w: empty statement", ErrUnsupported)
	}
	if stmt.With != nil {
		if stmt.With.Recursive {
			return nil, fmt.Errorf("%w: WITH RECURSIVE", ErrUnsupported)
		}
		saved := l.ctes
		l.ctes = maps.Clone(saved)
		defer func() { l.ctes = saved }()

		for _, cte := range stmt.With.CTEs {
			op, err := l.stmt(cte.Select, nil)
			if err != nil {
				return nil, fmt.Errorf("WITH %s: %w", cte.Name.Value, err)
			}
			def := cteDef{op: op}
			for _, c := range cte.Columns {
				def.names = append(def.names, c.Value)
			}
			l.ctes[fold(cte.Name.Value)] = def
		}
	}
	return l.body(stmt.Body, outer)
}

func (l *lowerer) body(b *core.SelectBody, outer *scope) (Op, error) {
	if b.Right == nil {
		return l.selectCore(b.Left, outer, true)
	}

	set := &SetOp{}
	var last *core.SelectCore
	for cur := b; cur != nil; cur = cur.Right {
		// ORDER BY and LIMIT on the final branch apply to the whole set.
		tail := cur.Right != nil
		op, err := l.selectCore(cur.Left, outer, tail)
		if err != nil {
			return nil, err
		}
		set.Branches = append(set.Branches, op)
		if cur.Op != core.SetOpNone {
			set.Ops = append(set.Ops, cur.Op)
		}
		last = cur.Left
	}
	set.schema = setSchema(set.Branches)

	items := make([]Item, len(set.schema))
	for i, c := range set.schema {
		items[i] = Item{Name: c.Name, Expr: &ColumnRef{typed: typed{typ: c.Type, null: c.Nullability}, Column: c}}
	}
	outScope := &scope{parent: outer, cols: set.schema}
	return l.tail(set, last, outScope, items, nil)
}

// setSchema names the output after the first branch and widens types and
// nullability across branches. Count mismatches keep the first branch's
// width; they are reported by analysis, not rejected.
func setSchema(branches []Op) []Column {
	first := branches[0].Schema()
	out := make([]Column, len(first))
	for i, c := range first {
		c.Table = ""
		c.Origins = append([]Origin(nil), c.Origins...)
		out[i] = c
	}
	for _, br := range branches[1:] {
		for i, c := range br.Schema() {
			if i >= len(out) {
				break
			}
			o := &out[i]
			if o.Type.IsUnknown() || o.Type.IsNumeric() && c.Type.IsNumeric() {
				o.Type = promote(o.Type, c.Type)
			}
			o.Nullability = o.Nullability.Combine(c.Nullability)
			o.Origins = mergeOrigins(o.Origins, c.Origins)
			o.Derived = o.Derived || c.Derived
			o.OuterJoined = o.OuterJoined || c.OuterJoined
		}
	}
	return out
}

// ---------- SELECT core ----------

func (l *lowerer) selectCore(sc *core.SelectCore, outer *scope, tail bool) (Op, error) {
	s := &scope{parent: outer}
	var input Op = &Values{}

	if sc.From != nil {
		op, err := l.from(sc.From, s)
		if err != nil {
			return nil, err
		}
		input = op
	}

	if sc.Where != nil {
		pred, err := l.expr(sc.Where, s, nil)
		if err != nil {
			return nil, fmt.Errorf("WHERE: %w", err)
		}
		input = &Filter{Input: input, Predicate: pred}
	}

	agg := &aggState{}
	items, err := l.items(sc.Columns, s, agg)
	if err != nil {
		return nil, err
	}

	groupBy := make([]Expr, 0, len(sc.GroupBy))
	for _, g := range sc.GroupBy {
		e, err := l.groupKey(g, s, items)
		if err != nil {
			return nil, fmt.Errorf("GROUP BY: %w", err)
		}
		groupBy = append(groupBy, e)
	}

	var having Expr
	if sc.Having != nil {
		having, err = l.expr(sc.Having, s, agg)
		if err != nil {
			return nil, fmt.Errorf("HAVING: %w", err)
		}
	}

	proj := &Project{Items: items, Distinct: sc.Distinct}
	proj.schema = projectSchema(items)

	// ORDER BY may add aggregates, so it is lowered before the Aggregate
	// operator is assembled.
	var op Op = proj
	if tail {
		orderScope := &scope{parent: outer, fallback: s, cols: proj.schema}
		op, err = l.tail(proj, sc, orderScope, items, agg)
		if err != nil {
			return nil, err
		}
	}

	if len(groupBy) > 0 || len(agg.calls) > 0 || having != nil {
		a := &Aggregate{Input: input, GroupBy: groupBy, Aggregates: agg.calls}
		a.schema = aggregateSchema(a)
		input = a
		if having != nil {
			input = &Filter{Input: a, Predicate: having, Having: true}
		}
	}
	proj.Input = input
	return op, nil
}

// tail wraps op in Sort and Limit for the ORDER BY / LIMIT / OFFSET of sc.
func (l *lowerer) tail(op Op, sc *core.SelectCore, s *scope, items []Item, agg *aggState) (Op, error) {
	if len(sc.OrderBy) > 0 {
		sort := &Sort{Input: op}
		for _, ob := range sc.OrderBy {
			key, err := l.ordinalOr(ob.Expr, items, func() (Expr, error) { return l.expr(ob.Expr, s, agg) })
			if err != nil {
				return nil, fmt.Errorf("ORDER BY: %w", err)
			}
			sort.Keys = append(sort.Keys, SortKey{Expr: key, Desc: ob.Desc})
		}
		op = sort
	}

	if sc.Limit != nil || sc.Offset != nil {
		lim := &Limit{Input: op}
		var err error
		if sc.Limit != nil {
			if lim.Count, err = l.expr(sc.Limit, &scope{}, nil); err != nil {
				return nil, fmt.Errorf("LIMIT: %w", err)
			}
		}
		if sc.Offset != nil {
			if lim.Offset, err = l.expr(sc.Offset, &scope{}, nil); err != nil {
				return nil, fmt.Errorf("OFFSET: %w", err)
			}
		}
		op = lim
	}
	return op, nil
}

// ordinalOr resolves a positional reference (ORDER BY 2) to the select
// item it names, and otherwise lowers the expression with fallback.
func (l *lowerer) ordinalOr(e core.Expr, items []Item, fallback func() (Expr, error)) (Expr, error) {
	if lit, ok := core.Unparen(e).(*core.Literal); ok && lit.Type == core.LiteralNumber && !lit.IsDecimal() {
		n, err := strconv.Atoi(lit.Value)
		if err != nil || n < 1 || n > len(items) {
			return nil, fmt.Errorf("%w: position %s is not in the select list", ErrUnknownColumn, lit.Value)
		}
		return items[n-1].Expr, nil
	}
	return fallback()
}

// groupKey lowers a GROUP BY key: a position, an input column or
// expression, or a select-list alias.
func (l *lowerer) groupKey(g core.Expr, s *scope, items []Item) (Expr, error) {
	return l.ordinalOr(g, items, func() (Expr, error) {
		e, err := l.expr(g, s, nil)
		if err == nil {
			return e, nil
		}
		if ref, ok := core.Unparen(g).(*core.ColumnRef); ok && len(ref.Parts) == 1 {
			for _, it := range items {
				if strings.EqualFold(it.Name, ref.Column()) {
					return it.Expr, nil
				}
			}
		}
		return nil, err
	})
}

func (l *lowerer) items(list []core.SelectItem, s *scope, agg *aggState) ([]Item, error) {
	var items []Item
	for _, item := range list {
		switch {
		case item.Star || len(item.TableStar) > 0:
			qual := ""
			if n := len(item.TableStar); n > 0 {
				qual = item.TableStar[n-1].Value
			}
			cols, err := s.star(qual)
			if err != nil {
				return nil, err
			}
			for _, c := range cols {
				src := &core.ColumnRef{Parts: core.Idents(c.Name)}
				if c.Table != "" {
					src.Parts = core.Idents(c.Table, c.Name)
				}
				items = append(items, Item{
					Name: c.Name,
					Expr: &ColumnRef{typed: typed{src: src, typ: c.Type, null: c.Nullability}, Column: c},
				})
			}
		default:
			e, err := l.expr(item.Expr, s, agg)
			if err != nil {
				return nil, err
			}
			name := item.Alias.Value
			if name == "" {
				name = outputName(item.Expr)
			}
			items = append(items, Item{Name: name, Expr: e})
		}
	}
	return items, nil
}

// outputName names an unaliased select item: a column keeps its name, a
// function call takes the function name, anything else its SQL text.
func outputName(e core.Expr) string {
	switch e := core.Unparen(e).(type) {
	case *core.ColumnRef:
		return e.Column()
	case *core.FuncCall:
		if n := len(e.Name); n > 0 {
			return strings.ToLower(e.Name[n-1].Value)
		}
	}
	return format.Expr(e)
}

func projectSchema(items []Item) []Column {
	out := make([]Column, len(items))
	for i, it := range items {
		out[i] = exprColumn(it.Name, it.Expr)
	}
	return out
}

func aggregateSchema(a *Aggregate) []Column {
	out := make([]Column, 0, len(a.GroupBy)+len(a.Aggregates))
	for _, g := range a.GroupBy {
		name := g.SQL()
		if ref, ok := g.(*ColumnRef); ok {
			name = ref.Column.Name
		}
		out = append(out, exprColumn(name, g))
	}
	for _, c := range a.Aggregates {
		out = append(out, exprColumn(c.SQL(), c))
	}
	return out
}

// exprColumn derives the output column of an expression. A plain column
// reference passes its lineage through unchanged.
func exprColumn(name string, e Expr) Column {
	c := Column{Name: name, Type: e.Type(), Nullability: e.Nullability()}
	if ref, ok := e.(*ColumnRef); ok {
		c.Origins = ref.Column.Origins
		c.Derived = ref.Column.Derived
		c.OuterJoined = ref.Column.OuterJoined
		return c
	}
	c.Origins = exprOrigins(e)
	c.Derived = true
	for _, ref := range ColumnRefs(e) {
		c.OuterJoined = c.OuterJoined || ref.Column.OuterJoined
	}
	return c
}

// exprOrigins collects the catalog columns an expression reads, including
// the output of scalar subqueries.
func exprOrigins(e Expr) []Origin {
	var out []Origin
	WalkExpr(e, func(x Expr) bool {
		switch x := x.(type) {
		case *ColumnRef:
			out = mergeOrigins(out, x.Column.Origins)
		case *Subquery:
			if x.Kind == SubqueryScalar {
				if cols := x.Root.Schema(); len(cols) > 0 {
					out = mergeOrigins(out, cols[0].Origins)
				}
			}
		}
		return true
	})
	return out
}

func mergeOrigins(dst, src []Origin) []Origin {
	for _, o := range src {
		dup := false
		for _, d := range dst {
			if d == o {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, o)
		}
	}
	return dst
}

// ---------- FROM ----------

// from lowers the FROM clause, leaving the visible columns in s.
func (l *lowerer) from(fc *core.FromClause, s *scope) (Op, error) {
	op, err := l.tableRef(fc.Source, s)
	if err != nil {
		return nil, err
	}
	s.cols = op.Schema()

	for _, j := range fc.Joins {
		right, err := l.tableRef(j.Right, s)
		if err != nil {
			return nil, err
		}
		joined, err := l.join(op, right, j, s)
		if err != nil {
			return nil, err
		}
		op = joined
	}
	return op, nil
}

func (l *lowerer) join(left, right Op, j *core.Join, s *scope) (Op, error) {
	jn := &Join{Left: left, Right: right, Type: j.Type, Natural: j.Natural}
	if jn.Type == core.JoinComma {
		jn.Type = core.JoinCross
	}

	lcols := append([]Column(nil), left.Schema()...)
	rcols := append([]Column(nil), right.Schema()...)
	switch j.Type {
	case core.JoinLeft:
		markOuterJoined(rcols)
	case core.JoinRight:
		markOuterJoined(lcols)
	case core.JoinFull:
		markOuterJoined(lcols)
		markOuterJoined(rcols)
	}

	using := make([]string, 0, len(j.Using))
	for _, id := range j.Using {
		using = append(using, id.Value)
	}
	if j.Natural {
		for _, lc := range lcols {
			if lc.hidden {
				continue
			}
			for _, rc := range rcols {
				if !rc.hidden && strings.EqualFold(lc.Name, rc.Name) {
					using = append(using, lc.Name)
					break
				}
			}
		}
	}
	for _, name := range using {
		li, ri := visibleIndex(lcols, name), visibleIndex(rcols, name)
		if li < 0 || ri < 0 {
			return nil, fmt.Errorf("%w: %s in USING clause", ErrUnknownColumn, name)
		}
		rcols[ri].hidden = true
	}
	jn.Using = using

	jn.schema = append(lcols, rcols...)
	s.cols = jn.schema

	if j.Condition != nil {
		cond, err := l.expr(j.Condition, s, nil)
		if err != nil {
			return nil, fmt.Errorf("JOIN ON: %w", err)
		}
		jn.Condition = cond
	}
	return jn, nil
}

func visibleIndex(cols []Column, name string) int {
	for i, c := range cols {
		if !c.hidden && strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func (l *lowerer) tableRef(ref core.TableRef, s *scope) (Op, error) {
	switch ref := ref.(type) {
	case *core.TableName:
		return l.scan(ref, s)

	case *core.TableFunc:
		name := ref.Qualified()
		label := ref.EffectiveName()
		scan := &Scan{Ref: name, Label: label}
		for _, a := range ref.Args {
			e, err := l.expr(a, s, nil)
			if err != nil {
				return nil, fmt.Errorf("%s(): %w", name, err)
			}
			scan.Args = append(scan.Args, e)
		}
		if node, cols, ok := l.res.LookupTable(name); ok {
			scan.Node = node
			scan.schema = catalogColumns(node, label, cols)
			l.relations[node] = true
			return scan, nil
		}
		switch fn := strings.ToLower(ref.Name[len(ref.Name)-1].Value); fn {
		case "range", "generate_series":
			scan.schema = []Column{{Name: fn, Type: core.BigInt(), Nullability: core.NotNull, Table: label, Derived: true}}
			return scan, nil
		}
		scan.Open = true
		scan.Node = name
		s.open = append(s.open, openRelation{label: label, node: name})
		return scan, nil

	case *core.DerivedTable:
		var parent *scope
		if ref.Lateral {
			parent = s
		}
		op, err := l.stmt(ref.Select, parent)
		if err != nil {
			return nil, err
		}
		label := ref.Alias.Value
		return &Scan{Ref: label, Label: label, Input: op, schema: relabel(op.Schema(), label, nil)}, nil
	}
	panic(fmt.Sprintf("planner: unhandled table reference %T", ref))
}

func (l *lowerer) scan(ref *core.TableName, s *scope) (Op, error) {
	name := ref.Qualified()
	label := ref.EffectiveName()

	if !ref.IsQualified() {
		if def, ok := l.ctes[fold(name)]; ok {
			return &Scan{Ref: name, Label: label, Input: def.op, schema: relabel(def.op.Schema(), label, def.names)}, nil
		}
	}

	if node, cols, ok := l.res.LookupTable(name); ok {
		l.relations[node] = true
		return &Scan{Node: node, Ref: name, Label: label, schema: catalogColumns(node, label, cols)}, nil
	}

	if l.externals[fold(name)] || l.externals[fold(ref.Name())] || fold(ref.Name()) == l.self {
		s.open = append(s.open, openRelation{label: label, node: name})
		return &Scan{Node: name, Ref: name, Label: label, Open: true}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
}

func catalogColumns(node, label string, cols []core.TypedColumn) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = Column{
			Name:        c.Name,
			Type:        c.Type,
			Nullability: c.Nullability,
			Table:       label,
			Origins:     []Origin{{Node: node, Column: c.Name}},
		}
	}
	return out
}

// ---------- Expressions ----------

func (l *lowerer) exprs(list []core.Expr, s *scope, agg *aggState) ([]Expr, error) {
	out := make([]Expr, 0, len(list))
	for _, e := range list {
		x, err := l.expr(e, s, agg)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// expr lowers and types an expression. agg collects aggregate calls; nil
// means aggregates are not allowed in this position.
func (l *lowerer) expr(e core.Expr, s *scope, agg *aggState) (Expr, error) {
	switch e := e.(type) {
	case *core.ParenExpr:
		return l.expr(e.Expr, s, agg)

	case *core.ColumnRef:
		parts := make([]string, len(e.Parts))
		for i, p := range e.Parts {
			parts[i] = p.Value
		}
		col, correlated, err := s.resolve(parts)
		if err != nil {
			if name := strings.ToLower(e.Column()); len(parts) == 1 && niladic[name] {
				typ, null, _ := callType(name, nil)
				return &Call{typed: typed{src: e, typ: typ, null: null}, Name: name}, nil
			}
			return nil, err
		}
		return &ColumnRef{typed: typed{src: e, typ: col.Type, null: col.Nullability}, Column: col, Correlated: correlated}, nil

	case *core.Literal:
		typ, null := literalType(e)
		return &Literal{typed: typed{src: e, typ: typ, null: null}, Value: e.Value, Kind: e.Type}, nil

	case *core.BinaryExpr:
		left, err := l.expr(e.Left, s, agg)
		if err != nil {
			return nil, err
		}
		right, err := l.expr(e.Right, s, agg)
		if err != nil {
			return nil, err
		}
		return &Binary{
			typed: typed{src: e, typ: binaryType(e.Op, left.Type(), right.Type()),
				null: left.Nullability().Combine(right.Nullability())},
			Op: e.Op, Left: left, Right: right,
		}, nil

	case *core.UnaryExpr:
		operand, err := l.expr(e.Expr, s, agg)
		if err != nil {
			return nil, err
		}
		typ := operand.Type()
		if e.Op == token.NOT {
			typ = core.Boolean()
		}
		return &Unary{typed: typed{src: e, typ: typ, null: operand.Nullability()}, Op: e.Op, Operand: operand}, nil

	case *core.FuncCall:
		return l.call(e, s, agg)

	case *core.CaseExpr:
		c := &Case{typed: typed{src: e}}
		var err error
		if e.Operand != nil {
			if c.Operand, err = l.expr(e.Operand, s, agg); err != nil {
				return nil, err
			}
		}
		results := make([]Expr, 0, len(e.Whens)+1)
		for _, w := range e.Whens {
			cond, err := l.expr(w.Condition, s, agg)
			if err != nil {
				return nil, err
			}
			res, err := l.expr(w.Result, s, agg)
			if err != nil {
				return nil, err
			}
			c.Whens = append(c.Whens, When{Cond: cond, Result: res})
			results = append(results, res)
		}
		if e.Else != nil {
			if c.Else, err = l.expr(e.Else, s, agg); err != nil {
				return nil, err
			}
			results = append(results, c.Else)
		}
		c.typ, c.null = caseType(results, e.Else != nil)
		return c, nil

	case *core.CastExpr:
		operand, err := l.expr(e.Expr, s, agg)
		if err != nil {
			return nil, err
		}
		target := core.ParseSQLType(e.TypeName)
		return &Cast{typed: typed{src: e, typ: target, null: operand.Nullability()}, Operand: operand, Target: target}, nil

	case *core.InExpr:
		operand, err := l.expr(e.Expr, s, agg)
		if err != nil {
			return nil, err
		}
		if e.Query != nil {
			root, err := l.stmt(e.Query, s)
			if err != nil {
				return nil, err
			}
			return &Subquery{
				typed: typed{src: e, typ: core.Boolean(), null: operand.Nullability()},
				Kind:  SubqueryIn, Operand: operand, Not: e.Not, Root: root,
			}, nil
		}
		args, err := l.exprs(e.Values, s, agg)
		if err != nil {
			return nil, err
		}
		return &Predicate{
			typed: typed{src: e, typ: core.Boolean(), null: operand.Nullability().Combine(combineAll(args))},
			Kind:  PredicateIn, Operand: operand, Args: args, Not: e.Not,
		}, nil

	case *core.BetweenExpr:
		args, err := l.exprs([]core.Expr{e.Expr, e.Low, e.High}, s, agg)
		if err != nil {
			return nil, err
		}
		return &Predicate{
			typed: typed{src: e, typ: core.Boolean(), null: combineAll(args)},
			Kind:  PredicateBetween, Operand: args[0], Args: args[1:], Not: e.Not,
		}, nil

	case *core.LikeExpr:
		args, err := l.exprs([]core.Expr{e.Expr, e.Pattern}, s, agg)
		if err != nil {
			return nil, err
		}
		return &Predicate{
			typed: typed{src: e, typ: core.Boolean(), null: combineAll(args)},
			Kind:  PredicateLike, Operand: args[0], Args: args[1:], Not: e.Not,
		}, nil

	case *core.IsBoolExpr:
		operand, err := l.expr(e.Expr, s, agg)
		if err != nil {
			return nil, err
		}
		return &Predicate{
			typed: typed{src: e, typ: core.Boolean(), null: core.NotNull},
			Kind:  PredicateIsBool, Operand: operand, Not: e.Not,
		}, nil

	case *core.IsNullExpr:
		operand, err := l.expr(e.Expr, s, agg)
		if err != nil {
			return nil, err
		}
		return &IsNull{typed: typed{src: e, typ: core.Boolean(), null: core.NotNull}, Operand: operand, Not: e.Not}, nil

	case *core.SubqueryExpr:
		root, err := l.stmt(e.Select, s)
		if err != nil {
			return nil, err
		}
		cols := root.Schema()
		if len(cols) != 1 {
			return nil, fmt.Errorf("%w: scalar subquery returns %d columns", ErrUnsupported, len(cols))
		}
		return &Subquery{typed: typed{src: e, typ: cols[0].Type, null: core.Nullable}, Kind: SubqueryScalar, Root: root}, nil

	case *core.ExistsExpr:
		root, err := l.stmt(e.Select, s)
		if err != nil {
			return nil, err
		}
		return &Subquery{typed: typed{src: e, typ: core.Boolean(), null: core.NotNull}, Kind: SubqueryExists, Not: e.Not, Root: root}, nil
	}
	panic(fmt.Sprintf("planner: unhandled expression %T", e))
}

func (l *lowerer) call(e *core.FuncCall, s *scope, agg *aggState) (Expr, error) {
	name := strings.ToLower(e.Name[len(e.Name)-1].Value)
	isAgg := IsAggregate(name) && e.Window == nil
	if isAgg && agg == nil {
		return nil, fmt.Errorf("%w: aggregate %s() is not allowed here", ErrUnsupported, name)
	}

	argAgg := agg
	if isAgg {
		argAgg = nil
	}
	args, err := l.exprs(e.Args, s, argAgg)
	if err != nil {
		return nil, err
	}

	c := &Call{typed: typed{src: e}, Name: name, Args: args, Star: e.Star, Distinct: e.Distinct, Aggregate: isAgg}

	if e.Window != nil {
		w := &Window{}
		if w.Partition, err = l.exprs(e.Window.PartitionBy, s, agg); err != nil {
			return nil, err
		}
		for _, ob := range e.Window.OrderBy {
			key, err := l.expr(ob.Expr, s, agg)
			if err != nil {
				return nil, err
			}
			w.Order = append(w.Order, SortKey{Expr: key, Desc: ob.Desc})
		}
		c.Window = w
	}

	typ, null, ok := callType(name, args)
	c.Builtin = ok
	if !ok {
		// A scalar function node returns its first declared column.
		if _, cols, found := l.res.LookupTable(e.FuncName()); found && len(cols) > 0 {
			typ, null = cols[0].Type, cols[0].Nullability
		}
	}
	c.typ, c.null = typ, null

	if isAgg {
		agg.calls = append(agg.calls, c)
	}
	return c, nil
}
