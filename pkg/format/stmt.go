package format

import (
	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

func (p *Printer) formatSelectStmt(stmt *core.SelectStmt) {
	if stmt == nil {
		return
	}

	if stmt.With != nil {
		p.formatWithClause(stmt.With)
	}

	if stmt.Body != nil {
		p.formatSelectBody(stmt.Body)
	}
}

func (p *Printer) formatWithClause(with *core.WithClause) {
	p.kw(token.WITH)
	if with.Recursive {
		p.space()
		p.kw(token.RECURSIVE)
	}
	p.writeln()

	p.indent()
	p.formatList(len(with.CTEs), func(i int) {
		cte := with.CTEs[i]
		p.ident(cte.Name)
		if len(cte.Columns) > 0 {
			p.write(" (")
			p.formatList(len(cte.Columns), func(j int) { p.ident(cte.Columns[j]) }, ", ", false)
			p.write(")")
		}
		p.space()
		p.kw(token.AS)
		p.write(" (")
		p.writeln()

		p.indent()
		p.formatSelectStmt(cte.Select)
		p.dedent()

		p.write(")")
	}, ",", true)
	p.writeln()
	p.dedent()
}

func (p *Printer) formatSelectBody(body *core.SelectBody) {
	if body == nil {
		return
	}

	p.formatSelectCore(body.Left)

	if body.Op != core.SetOpNone {
		switch body.Op {
		case core.SetOpUnion:
			p.kw(token.UNION)
		case core.SetOpUnionAll:
			p.kw(token.UNION, token.ALL)
		case core.SetOpIntersect:
			p.kw(token.INTERSECT)
		case core.SetOpExcept:
			p.kw(token.EXCEPT)
		}
		p.writeln()
		p.formatSelectBody(body.Right)
	}
}

func (p *Printer) formatSelectCore(sc *core.SelectCore) {
	if sc == nil {
		return
	}

	p.kw(token.SELECT)
	if sc.Distinct {
		p.space()
		p.kw(token.DISTINCT)
	}
	p.writeln()

	p.indent()
	p.formatList(len(sc.Columns), func(i int) { p.formatSelectItem(sc.Columns[i]) }, ",", true)
	p.writeln()
	p.dedent()

	if sc.From != nil {
		p.kw(token.FROM)
		p.space()
		p.formatFromClause(sc.From)
		p.writeln()
	}

	if sc.Where != nil {
		p.kw(token.WHERE)
		p.writeln()
		p.indent()
		p.formatExpr(sc.Where)
		p.dedent()
		p.writeln()
	}

	if len(sc.GroupBy) > 0 {
		p.kw(token.GROUP, token.BY)
		p.writeln()
		p.indent()
		p.formatList(len(sc.GroupBy), func(i int) { p.formatExpr(sc.GroupBy[i]) }, ",", true)
		p.dedent()
		p.writeln()
	}

	if sc.Having != nil {
		p.kw(token.HAVING)
		p.writeln()
		p.indent()
		p.formatExpr(sc.Having)
		p.dedent()
		p.writeln()
	}

	if len(sc.OrderBy) > 0 {
		p.kw(token.ORDER, token.BY)
		p.writeln()
		p.indent()
		p.formatList(len(sc.OrderBy), func(i int) { p.formatOrderByItem(sc.OrderBy[i]) }, ",", true)
		p.dedent()
		p.writeln()
	}

	if sc.Limit != nil {
		p.kw(token.LIMIT)
		p.space()
		p.formatExpr(sc.Limit)
		p.writeln()
	}

	if sc.Offset != nil {
		p.kw(token.OFFSET)
		p.space()
		p.formatExpr(sc.Offset)
		p.writeln()
	}
}

func (p *Printer) formatSelectItem(item core.SelectItem) {
	switch {
	case item.Star:
		p.write("*")
	case len(item.TableStar) > 0:
		p.idents(item.TableStar)
		p.write(".*")
	default:
		p.formatExpr(item.Expr)
		p.alias(item.Alias)
	}
}

func (p *Printer) formatFromClause(from *core.FromClause) {
	if from == nil {
		return
	}

	p.formatTableRef(from.Source)

	for _, join := range from.Joins {
		if join.Type == core.JoinComma {
			p.write(",")
		}
		p.writeln()
		p.formatJoin(join)
	}
}

func (p *Printer) formatTableRef(ref core.TableRef) {
	switch t := ref.(type) {
	case *core.TableName:
		p.idents(t.Parts)
		p.alias(t.Alias)
	case *core.TableFunc:
		p.idents(t.Name)
		p.write("(")
		p.formatList(len(t.Args), func(i int) { p.formatExpr(t.Args[i]) }, ", ", false)
		p.write(")")
		p.alias(t.Alias)
	case *core.DerivedTable:
		if t.Lateral {
			p.kw(token.LATERAL)
			p.space()
		}
		p.write("(")
		p.writeln()
		p.indent()
		p.formatSelectStmt(t.Select)
		p.dedent()
		p.write(")")
		p.alias(t.Alias)
	}
}

func (p *Printer) formatJoin(join *core.Join) {
	if join == nil {
		return
	}

	if join.Type == core.JoinComma {
		p.formatTableRef(join.Right)
		return
	}

	if join.Natural {
		p.kw(token.NATURAL)
		p.space()
	}

	if join.Type == core.JoinInner {
		p.kw(token.JOIN)
	} else {
		// The JoinType string is the keyword.
		p.keyword(string(join.Type))
		p.space()
		p.kw(token.JOIN)
	}
	p.space()

	p.formatTableRef(join.Right)

	if len(join.Using) > 0 {
		p.writeln()
		p.indent()
		p.kw(token.USING)
		p.write(" (")
		p.formatList(len(join.Using), func(i int) { p.ident(join.Using[i]) }, ", ", false)
		p.write(")")
		p.dedent()
	} else if join.Condition != nil {
		p.writeln()
		p.indent()
		p.kw(token.ON)
		p.space()
		p.formatExpr(join.Condition)
		p.dedent()
	}
}

func (p *Printer) formatOrderByItem(item core.OrderByItem) {
	p.formatExpr(item.Expr)
	if item.Desc {
		p.space()
		p.kw(token.DESC)
	}
	if item.NullsFirst != nil {
		p.space()
		p.kw(token.NULLS)
		p.space()
		if *item.NullsFirst {
			p.kw(token.FIRST)
		} else {
			p.kw(token.LAST)
		}
	}
}
