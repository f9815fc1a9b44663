// Package screen prints the convergence table on the console.
//
// The table is a boxed, fixed-width layout: a separator line, the column
// labels, another separator, then one row per reported iteration. Multizone
// runs print a zone title above each header.
package screen

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// CellWidth is the width of a table cell in characters
const CellWidth = 14

// ZoneTitle is the title printed above multizone headers
func ZoneTitle(zone int) string {
	return fmt.Sprintf("Zone %d (Structure)", zone)
}

// Writer is the console table sink
type Writer struct {
	out    io.Writer
	title  string
	cell   lipgloss.Style
	fields []field.Descriptor
}

var _ sink.HeaderWriter = (*Writer)(nil)

// New creates a screen writer on out. A non-empty title is printed above
// every header.
func New(out io.Writer, title string) *Writer {
	r := lipgloss.NewRenderer(out)
	return &Writer{
		out:   out,
		title: title,
		cell:  r.NewStyle().Width(CellWidth).Align(lipgloss.Right),
	}
}

func (w *Writer) Name() string { return "screen" }

func (w *Writer) Open(_ context.Context, fields []field.Descriptor) error {
	w.fields = append([]field.Descriptor(nil), fields...)
	return nil
}

// WriteHeader prints the column labels framed by separators
func (w *Writer) WriteHeader(context.Context) error {
	var b strings.Builder
	sep := w.separator()
	if w.title != "" {
		b.WriteString(w.title)
		b.WriteByte('\n')
	}
	b.WriteString(sep)
	cells := make([]string, len(w.fields))
	for i, d := range w.fields {
		cells[i] = d.Label
	}
	b.WriteString(w.row(cells))
	b.WriteString(sep)
	return w.write(b.String())
}

// WriteRow prints one formatted row
func (w *Writer) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = sink.FormatCell(w.fields[i], v)
	}
	return w.write(w.row(cells))
}

// Close is a no-op; the writer does not own out
func (w *Writer) Close() error { return nil }

func (w *Writer) separator() string {
	return "+" + strings.Repeat("-", CellWidth*len(w.fields)) + "+\n"
}

func (w *Writer) row(cells []string) string {
	var b strings.Builder
	b.WriteByte('|')
	for _, c := range cells {
		b.WriteString(w.cell.Render(truncate(c, CellWidth-1)))
	}
	b.WriteString("|\n")
	return b.String()
}

func (w *Writer) write(s string) error {
	if _, err := io.WriteString(w.out, s); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write to screen")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
