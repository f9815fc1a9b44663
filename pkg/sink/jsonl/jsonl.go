// Package jsonl mirrors history rows as JSON lines.
//
// The first line describes the columns; every following line is one
// iteration. Non-finite values, which JSON cannot carry as numbers, are
// written as the strings "-inf", "+inf" and "nan".
package jsonl

import (
	"bufio"
	"context"
	"math"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/json"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// Column describes one value position in the rows
type Column struct {
	ID     field.ID `json:"id"`
	Label  string   `json:"label"`
	Group  string   `json:"group"`
	Format string   `json:"format"`
	Kind   string   `json:"kind"`
}

// Header is the first line of the file
type Header struct {
	Type    string   `json:"type"`
	Columns []Column `json:"columns"`
}

// Row is one iteration
type Row struct {
	Type      string           `json:"type"`
	Iteration record.Iteration `json:"iteration"`
	Values    []Value          `json:"values"`
}

// Value is a float64 that survives JSON when non-finite
type Value float64

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte(strconv.Quote(sink.FormatExact(field.Descriptor{}, f))), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		f, err := sink.ParseExact(s)
		if err != nil {
			return err
		}
		*v = Value(f)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Columns describes fields in order
func Columns(fields []field.Descriptor) []Column {
	cols := make([]Column, len(fields))
	for i, d := range fields {
		cols[i] = Column{
			ID:     d.ID,
			Label:  d.Label,
			Group:  d.Group,
			Format: d.Format.String(),
			Kind:   d.Kind.String(),
		}
	}
	return cols
}

// NewRow selects fields from snap
func NewRow(snap record.HistorySnapshot, fields []field.Descriptor) (Row, error) {
	values, err := snap.Select(fields)
	if err != nil {
		return Row{}, err
	}
	row := Row{Type: "row", Iteration: snap.Scope(), Values: make([]Value, len(values))}
	for i, v := range values {
		row.Values[i] = Value(v)
	}
	return row, nil
}

// Writer is the JSON lines history sink
type Writer struct {
	path   string
	logger *zap.Logger

	file   *os.File
	buf    *bufio.Writer
	enc    *json.Encoder
	fields []field.Descriptor
	closed bool
}

var _ sink.HistoryWriter = (*Writer)(nil)

// New creates a JSON lines writer for path
func New(path string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		path:   path,
		logger: logger.With(zap.String("sink", "jsonl"), zap.String("path", path)),
	}
}

func (w *Writer) Name() string { return "jsonl" }

// Open creates the file and writes the header line
func (w *Writer) Open(_ context.Context, fields []field.Descriptor) error {
	file, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create json history file").
			WithDetail("path", w.path)
	}
	w.file = file
	w.buf = bufio.NewWriter(file)
	w.enc = json.NewEncoder(w.buf)
	w.fields = append([]field.Descriptor(nil), fields...)

	header := Header{Type: "header", Columns: Columns(fields)}
	if err := w.enc.Encode(header); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode header")
	}
	return w.flush()
}

// WriteRow appends one iteration
func (w *Writer) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	if w.enc == nil {
		return errors.New(errors.ErrorTypeInternal, "json history file not opened")
	}
	row, err := NewRow(snap, w.fields)
	if err != nil {
		return err
	}
	if err := w.enc.Encode(row); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode row")
	}
	return w.flush()
}

// Close flushes and closes the file
func (w *Writer) Close() error {
	if w.closed || w.file == nil {
		return nil
	}
	w.closed = true
	if err := w.flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close json history file")
	}
	return nil
}

func (w *Writer) flush() error {
	if err := w.buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush json history file")
	}
	return nil
}
