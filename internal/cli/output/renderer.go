// Package output renders command results as styled text, markdown, tables
// or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how results are written.
type Mode string

// Output modes.
const (
	// ModeAuto picks text on a terminal and markdown otherwise.
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeTable    Mode = "table"
)

// Renderer writes command output in one mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer. Colors are only used when out is a
// terminal and the environment allows them.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
	}

	profile := termenv.Ascii
	if isTTY {
		profile = termenv.EnvColorProfile()
	}
	lr := lipgloss.NewRenderer(out)
	lr.SetColorProfile(profile)

	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(lr),
	}
}

// Mode returns the configured mode.
func (r *Renderer) Mode() Mode { return r.mode }

// EffectiveMode resolves ModeAuto.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the text styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the writer for status messages.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) { _, _ = fmt.Fprintln(r.out, a...) }

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) { _, _ = fmt.Fprintf(r.out, format, a...) }

// Header writes a section header in text or markdown form.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println("")
		return
	}
	style := r.styles.Header
	if level > 1 {
		style = r.styles.Header2
	}
	r.Println(style.Render(text))
	if level == 1 {
		r.Println("")
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under header. Markdown mode writes a markdown table.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	if r.isTTY {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
	}

	hdr := make(table.Row, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	t.AppendHeader(hdr)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// Success writes a status message to the error writer.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Success.Render(msg))
}

// Warning writes a warning to the error writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render(msg))
}

// Error writes an error to the error writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render(msg))
}

// FormatHeader returns a markdown header.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown list item for a key/value pair.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}
