// Package format prints parsed SQL statements back to SQL text.
package format

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/leapcheck/pkg/core"
	"github.com/leapstack-labs/leapcheck/pkg/token"
)

const indentSize = 2

// Printer handles SQL formatting with proper indentation and style.
type Printer struct {
	output      *bytes.Buffer
	depth       int
	atLineStart bool
}

func newPrinter() *Printer {
	return &Printer{
		output:      &bytes.Buffer{},
		atLineStart: true,
	}
}

// String returns the formatted output.
func (p *Printer) String() string {
	return strings.TrimRight(p.output.String(), "\n") + "\n"
}

func (p *Printer) write(s string) {
	if p.atLineStart && len(s) > 0 && s[0] != '\n' {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *Printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

func (p *Printer) keyword(s string) {
	p.write(strings.ToUpper(s))
}

func (p *Printer) indent() {
	p.depth++
}

func (p *Printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

func (p *Printer) space() {
	p.output.WriteByte(' ')
}

// kw prints keywords by token type, space separated.
func (p *Printer) kw(tokens ...token.TokenType) {
	for i, t := range tokens {
		if i > 0 {
			p.space()
		}
		p.write(t.String())
	}
}

// ident prints an identifier, quoting it when it was quoted in the source.
func (p *Printer) ident(id core.Ident) {
	p.write(id.SQL())
}

// idents prints a dotted name.
func (p *Printer) idents(parts []core.Ident) {
	for i, part := range parts {
		if i > 0 {
			p.write(".")
		}
		p.ident(part)
	}
}

// alias prints " AS alias" when the alias is set.
func (p *Printer) alias(id core.Ident) {
	if id.IsZero() {
		return
	}
	p.space()
	p.kw(token.AS)
	p.space()
	p.ident(id)
}

func (p *Printer) formatComments(comments []*token.Comment) {
	for _, c := range comments {
		p.write(c.Text)
		p.writeln()
	}
}

// formatList prints a list of items with separators.
// count is the number of items, format is called for each index,
// sep is the separator string, multiline adds newlines after separators.
func (p *Printer) formatList(count int, format func(i int), sep string, multiline bool) {
	for i := 0; i < count; i++ {
		format(i)
		if i < count-1 {
			p.write(sep)
			if multiline {
				p.writeln()
			}
		}
	}
}
