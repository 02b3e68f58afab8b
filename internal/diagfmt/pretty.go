package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"pythia/internal/diag"
	"pythia/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan, color.Bold)
	codeColor    = color.New(color.Faint)
	gutterColor  = color.New(color.FgBlue)
	caretColor   = color.New(color.FgRed, color.Bold)
	noteColor    = color.New(color.FgCyan)
)

// Pretty renders diagnostics for a terminal: a severity header, the
// offending source line and a caret underline aligned with runewidth so
// tabs and wide runes do not skew the markers.
type Pretty struct {
	FS    *source.FileSet
	Color bool
}

// Render writes one diagnostic.
func (p *Pretty) Render(w io.Writer, d diag.Diagnostic) {
	c := p.severityColor(d.Severity)
	header := d.Severity.Label()
	if p.Color {
		fmt.Fprintf(w, "%s%s: %s\n", c.Sprint(header), codeColor.Sprintf("[%s]", d.Code.ID()), d.Message)
	} else {
		fmt.Fprintf(w, "%s[%s]: %s\n", header, d.Code.ID(), d.Message)
	}
	p.renderSpan(w, d.Primary, caretColor, "^")
	for _, n := range d.Notes {
		if p.Color {
			fmt.Fprintf(w, "  %s: %s\n", noteColor.Sprint("note"), n.Msg)
		} else {
			fmt.Fprintf(w, "  note: %s\n", n.Msg)
		}
		p.renderSpan(w, n.Span, noteColor, "-")
	}
}

// RenderAll writes every diagnostic separated by blank lines.
func (p *Pretty) RenderAll(w io.Writer, diags []diag.Diagnostic) {
	for i, d := range diags {
		if i > 0 {
			fmt.Fprintln(w)
		}
		p.Render(w, d)
	}
}

func (p *Pretty) renderSpan(w io.Writer, sp source.Span, marker *color.Color, markerChar string) {
	if sp == (source.Span{}) || p.FS == nil {
		return
	}
	f := p.FS.Get(sp.File)
	if f == nil {
		return
	}
	start, end := p.FS.Resolve(sp)

	loc := fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
	if p.Color {
		fmt.Fprintf(w, "  %s %s\n", gutterColor.Sprint("-->"), loc)
	} else {
		fmt.Fprintf(w, "  --> %s\n", loc)
	}

	line := f.GetLine(start.Line)
	if line == "" {
		return
	}
	gutter := fmt.Sprintf("%4d | ", start.Line)
	if p.Color {
		fmt.Fprintf(w, "%s%s\n", gutterColor.Sprint(gutter), line)
	} else {
		fmt.Fprintf(w, "%s%s\n", gutter, line)
	}

	// подчёркивание считаем в экранных колонках, не в байтах
	prefix := prefixOf(line, int(start.Col)-1)
	width := underlineWidth(line, start, end)
	pad := strings.Repeat(" ", len(gutter)-2) + "| " + strings.Repeat(" ", runewidth.StringWidth(prefix))
	underline := strings.Repeat(markerChar, width)
	if p.Color {
		fmt.Fprintf(w, "%s%s\n", pad, marker.Sprint(underline))
	} else {
		fmt.Fprintf(w, "%s%s\n", pad, underline)
	}
}

func (p *Pretty) severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

// prefixOf returns the first n bytes of line; columns are byte offsets.
func prefixOf(line string, n int) string {
	if n <= 0 {
		return ""
	}
	if n > len(line) {
		n = len(line)
	}
	return line[:n]
}

// underlineWidth measures the display width of the marked region on its
// first line; multi-line spans are marked to the end of the line.
func underlineWidth(line string, start, end source.LineCol) int {
	from := int(start.Col) - 1
	if from < 0 {
		from = 0
	}
	if from >= len(line) {
		return 1
	}
	to := len(line)
	if end.Line == start.Line && int(end.Col)-1 < to {
		to = int(end.Col) - 1
	}
	if to <= from {
		to = from + 1
	}
	w := runewidth.StringWidth(line[from:to])
	if w < 1 {
		w = 1
	}
	return w
}
