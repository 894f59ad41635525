package format

import (
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

const complexityThreshold = 5

func (p *Printer) formatExpr(e core.Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *core.Literal:
		p.formatLiteral(expr)
	case *core.ColumnRef:
		p.idents(expr.Parts)
	case *core.BinaryExpr:
		p.formatBinaryExpr(expr)
	case *core.UnaryExpr:
		p.formatUnaryExpr(expr)
	case *core.FuncCall:
		p.formatFuncCall(expr)
	case *core.CaseExpr:
		p.formatCaseExpr(expr)
	case *core.CastExpr:
		p.formatCastExpr(expr)
	case *core.InExpr:
		p.formatInExpr(expr)
	case *core.BetweenExpr:
		p.formatBetweenExpr(expr)
	case *core.IsNullExpr:
		p.formatIsNullExpr(expr)
	case *core.IsBoolExpr:
		p.formatIsBoolExpr(expr)
	case *core.LikeExpr:
		p.formatLikeExpr(expr)
	case *core.ParenExpr:
		p.write("(")
		p.formatExpr(expr.Expr)
		p.write(")")
	case *core.SubqueryExpr:
		p.write("(")
		p.writeln()
		p.indent()
		p.formatSelectStmt(expr.Select)
		p.dedent()
		p.write(")")
	case *core.ExistsExpr:
		p.formatExistsExpr(expr)
	default:
		panic("format: unhandled expression type")
	}
}

func exprComplexity(e core.Expr) int {
	switch expr := e.(type) {
	case nil:
		return 0
	case *core.BinaryExpr:
		return 1 + exprComplexity(expr.Left) + exprComplexity(expr.Right)
	case *core.UnaryExpr:
		return 1 + exprComplexity(expr.Expr)
	case *core.FuncCall:
		score := 2
		for _, arg := range expr.Args {
			score += exprComplexity(arg)
		}
		return score
	case *core.ParenExpr:
		return exprComplexity(expr.Expr)
	case *core.CaseExpr:
		score := 2
		for _, w := range expr.Whens {
			score += exprComplexity(w.Condition) + exprComplexity(w.Result)
		}
		return score
	default:
		return 1
	}
}

func isLogicalOp(op token.TokenType) bool {
	return op == token.AND || op == token.OR
}

func (p *Printer) formatLiteral(lit *core.Literal) {
	switch lit.Type {
	case core.LiteralString:
		p.write("'")
		p.write(strings.ReplaceAll(lit.Value, "'", "''"))
		p.write("'")
	case core.LiteralBool:
		if strings.EqualFold(lit.Value, "true") {
			p.kw(token.TRUE)
		} else {
			p.kw(token.FALSE)
		}
	case core.LiteralNull:
		p.kw(token.NULL)
	default:
		p.write(lit.Value)
	}
}

func (p *Printer) formatBinaryExpr(expr *core.BinaryExpr) {
	shouldBreak := exprComplexity(expr) > complexityThreshold && isLogicalOp(expr.Op)

	p.formatExpr(expr.Left)

	if shouldBreak {
		p.writeln()
	} else {
		p.space()
	}
	p.kw(expr.Op)
	p.space()

	p.formatExpr(expr.Right)
}

func (p *Printer) formatUnaryExpr(expr *core.UnaryExpr) {
	p.kw(expr.Op)
	if expr.Op == token.NOT {
		p.space()
	}
	p.formatExpr(expr.Expr)
}

func (p *Printer) formatFuncCall(fn *core.FuncCall) {
	p.idents(fn.Name)
	p.write("(")

	if fn.Distinct {
		p.kw(token.DISTINCT)
		p.space()
	}

	if fn.Star {
		p.write("*")
	} else {
		p.formatList(len(fn.Args), func(i int) { p.formatExpr(fn.Args[i]) }, ", ", false)
	}

	p.write(")")

	if fn.Window != nil {
		p.space()
		p.formatWindowSpec(fn.Window)
	}
}

func (p *Printer) formatWindowSpec(w *core.WindowSpec) {
	p.kw(token.OVER)
	p.write(" (")

	var parts []func()
	if len(w.PartitionBy) > 0 {
		parts = append(parts, func() {
			p.kw(token.PARTITION, token.BY)
			p.space()
			p.formatList(len(w.PartitionBy), func(i int) { p.formatExpr(w.PartitionBy[i]) }, ", ", false)
		})
	}
	if len(w.OrderBy) > 0 {
		parts = append(parts, func() {
			p.kw(token.ORDER, token.BY)
			p.space()
			p.formatList(len(w.OrderBy), func(i int) { p.formatOrderByItem(w.OrderBy[i]) }, ", ", false)
		})
	}
	if w.Frame != nil {
		parts = append(parts, func() { p.formatFrameSpec(w.Frame) })
	}

	for i, part := range parts {
		if i > 0 {
			p.space()
		}
		part()
	}

	p.write(")")
}

func (p *Printer) formatFrameSpec(f *core.FrameSpec) {
	p.keyword(string(f.Type))
	p.space()
	if f.End == nil {
		p.formatFrameBound(f.Start)
		return
	}
	p.kw(token.BETWEEN)
	p.space()
	p.formatFrameBound(f.Start)
	p.space()
	p.kw(token.AND)
	p.space()
	p.formatFrameBound(f.End)
}

func (p *Printer) formatFrameBound(b *core.FrameBound) {
	if b == nil {
		return
	}
	switch b.Type {
	case core.FrameUnboundedPreceding:
		p.kw(token.UNBOUNDED, token.PRECEDING)
	case core.FrameUnboundedFollowing:
		p.kw(token.UNBOUNDED, token.FOLLOWING)
	case core.FrameCurrentRow:
		p.kw(token.CURRENT, token.ROW)
	case core.FrameExprPreceding:
		p.formatExpr(b.Offset)
		p.space()
		p.kw(token.PRECEDING)
	case core.FrameExprFollowing:
		p.formatExpr(b.Offset)
		p.space()
		p.kw(token.FOLLOWING)
	}
}

func (p *Printer) formatCaseExpr(c *core.CaseExpr) {
	p.kw(token.CASE)

	if c.Operand != nil {
		p.space()
		p.formatExpr(c.Operand)
	}

	p.writeln()
	p.indent()

	for _, w := range c.Whens {
		p.kw(token.WHEN)
		p.space()
		p.formatExpr(w.Condition)
		p.space()
		p.kw(token.THEN)
		p.space()
		p.formatExpr(w.Result)
		p.writeln()
	}

	if c.Else != nil {
		p.kw(token.ELSE)
		p.space()
		p.formatExpr(c.Else)
		p.writeln()
	}

	p.dedent()
	p.kw(token.END)
}

func (p *Printer) formatCastExpr(c *core.CastExpr) {
	switch c.Style {
	case core.CastColons:
		p.formatExpr(c.Expr)
		p.write("::")
		p.write(c.TypeName)
	case core.CastTypedLiteral:
		p.write(c.TypeName)
		p.space()
		p.formatExpr(c.Expr)
	default:
		p.kw(token.CAST)
		p.write("(")
		p.formatExpr(c.Expr)
		p.space()
		p.kw(token.AS)
		p.space()
		p.write(c.TypeName)
		p.write(")")
	}
}

func (p *Printer) formatInExpr(in *core.InExpr) {
	p.formatExpr(in.Expr)
	if in.Not {
		p.space()
		p.kw(token.NOT)
	}
	p.space()
	p.kw(token.IN)
	p.write(" (")

	if in.Query != nil {
		p.writeln()
		p.indent()
		p.formatSelectStmt(in.Query)
		p.dedent()
	} else {
		p.formatList(len(in.Values), func(i int) { p.formatExpr(in.Values[i]) }, ", ", false)
	}

	p.write(")")
}

func (p *Printer) formatBetweenExpr(b *core.BetweenExpr) {
	p.formatExpr(b.Expr)
	if b.Not {
		p.space()
		p.kw(token.NOT)
	}
	p.space()
	p.kw(token.BETWEEN)
	p.space()
	p.formatExpr(b.Low)
	p.space()
	p.kw(token.AND)
	p.space()
	p.formatExpr(b.High)
}

func (p *Printer) formatIsNullExpr(is *core.IsNullExpr) {
	p.formatExpr(is.Expr)
	p.space()
	p.kw(token.IS)
	if is.Not {
		p.space()
		p.kw(token.NOT)
	}
	p.space()
	p.kw(token.NULL)
}

func (p *Printer) formatIsBoolExpr(is *core.IsBoolExpr) {
	p.formatExpr(is.Expr)
	p.space()
	p.kw(token.IS)
	if is.Not {
		p.space()
		p.kw(token.NOT)
	}
	p.space()
	if is.Value {
		p.kw(token.TRUE)
	} else {
		p.kw(token.FALSE)
	}
}

func (p *Printer) formatLikeExpr(like *core.LikeExpr) {
	p.formatExpr(like.Expr)
	if like.Not {
		p.space()
		p.kw(token.NOT)
	}
	p.space()
	p.kw(like.Op)
	p.space()
	p.formatExpr(like.Pattern)
}

func (p *Printer) formatExistsExpr(ex *core.ExistsExpr) {
	if ex.Not {
		p.kw(token.NOT)
		p.space()
	}
	p.kw(token.EXISTS)
	p.write(" (")
	p.writeln()
	p.indent()
	p.formatSelectStmt(ex.Select)
	p.dedent()
	p.write(")")
}
