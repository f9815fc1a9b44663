// Package csv writes history rows and volume snapshots as CSV files.
//
// The history file gets its header once, when it is opened, then one row per
// iteration. Volume files are rewritten at every snapshot so they always
// hold the latest solution.
package csv

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// HistoryWriter writes the history file
type HistoryWriter struct {
	path   string
	alg    compression.Algorithm
	level  compression.Level
	logger *zap.Logger

	file   *os.File
	comp   io.Closer
	writer *csv.Writer
	fields []field.Descriptor
	rows   int
	closed bool
}

var _ sink.HistoryWriter = (*HistoryWriter)(nil)

// NewHistoryWriter creates a history writer. The compression extension is
// appended to path.
func NewHistoryWriter(path string, alg compression.Algorithm, level compression.Level, logger *zap.Logger) *HistoryWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryWriter{
		path:   path + compression.Extension(alg),
		alg:    alg,
		level:  level,
		logger: logger.With(zap.String("sink", "csv"), zap.String("path", path)),
	}
}

// Path returns the file the writer writes to
func (w *HistoryWriter) Path() string { return w.path }

func (w *HistoryWriter) Name() string { return "csv" }

// Open creates the file and writes the header row
func (w *HistoryWriter) Open(_ context.Context, fields []field.Descriptor) error {
	file, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create history file").
			WithDetail("path", w.path)
	}
	comp, err := compression.NewWriter(file, w.alg, w.level)
	if err != nil {
		file.Close()
		return err
	}

	w.file = file
	w.comp = comp
	w.writer = csv.NewWriter(comp)
	w.fields = append([]field.Descriptor(nil), fields...)

	header := make([]string, len(fields))
	for i, d := range fields {
		header[i] = d.Label
	}
	if err := w.writer.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write headers")
	}
	w.writer.Flush()

	w.logger.Info("history file opened", zap.Int("columns", len(fields)))
	return w.writer.Error()
}

// WriteRow appends one iteration
func (w *HistoryWriter) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	if w.writer == nil {
		return errors.New(errors.ErrorTypeInternal, "history file not opened")
	}
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = sink.FormatExact(w.fields[i], v)
	}
	if err := w.writer.Write(row); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row")
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush row")
	}
	w.rows++
	return nil
}

// Close flushes the compressor and closes the file
func (w *HistoryWriter) Close() error {
	if w.closed || w.file == nil {
		return nil
	}
	w.closed = true

	w.writer.Flush()
	if err := w.comp.Close(); err != nil {
		w.file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed stream")
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close history file")
	}
	w.logger.Info("history file closed", zap.Int("rows", w.rows))
	return nil
}
