// Package parquet writes history rows as a Parquet file.
//
// Columns are named by field ID; integer fields are int64 and everything
// else float64, so residuals keep their exact bits including -Inf and NaN.
// Rows are buffered and written as one row group every RowGroupRows rows.
// The footer is written on Close; a file that was never closed is not
// readable.
package parquet

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// RowGroupRows is the default number of rows per row group
const RowGroupRows = 1024

// MetaLabel is the column metadata key holding the field label
const MetaLabel = "feaout.label"

// HistoryWriter is the Parquet history sink
type HistoryWriter struct {
	path      string
	alg       compression.Algorithm
	groupRows int
	pool      memory.Allocator
	logger    *zap.Logger

	fields  []field.Descriptor
	file    *os.File
	writer  *pqarrow.FileWriter
	builder *array.RecordBuilder
	pending int
	rows    int
	closed  bool
}

var _ sink.HistoryWriter = (*HistoryWriter)(nil)

// NewHistoryWriter creates a Parquet writer for path. alg selects the
// column compression; groupRows <= 0 means RowGroupRows.
func NewHistoryWriter(path string, alg compression.Algorithm, groupRows int, logger *zap.Logger) *HistoryWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if groupRows <= 0 {
		groupRows = RowGroupRows
	}
	return &HistoryWriter{
		path:      path,
		alg:       alg,
		groupRows: groupRows,
		pool:      memory.NewGoAllocator(),
		logger:    logger.With(zap.String("sink", "parquet"), zap.String("path", path)),
	}
}

func (w *HistoryWriter) Name() string { return "parquet" }

// Schema returns the Arrow schema the file is written with
func Schema(fields []field.Descriptor) *arrow.Schema {
	cols := make([]arrow.Field, len(fields))
	for i, d := range fields {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if d.Format == field.FormatInteger {
			typ = arrow.PrimitiveTypes.Int64
		}
		cols[i] = arrow.Field{
			Name:     string(d.ID),
			Type:     typ,
			Metadata: arrow.NewMetadata([]string{MetaLabel}, []string{d.Label}),
		}
	}
	return arrow.NewSchema(cols, nil)
}

// Open creates the file and the row buffer
func (w *HistoryWriter) Open(_ context.Context, fields []field.Descriptor) error {
	w.fields = append([]field.Descriptor(nil), fields...)
	schema := Schema(w.fields)

	file, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet history file").
			WithDetail("path", w.path)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec(w.alg)),
		parquet.WithDictionaryDefault(false),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(w.pool),
		pqarrow.WithStoreSchema(),
	)
	fw, err := pqarrow.NewFileWriter(schema, file, props, arrowProps)
	if err != nil {
		file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}

	w.file = file
	w.writer = fw
	w.builder = array.NewRecordBuilder(w.pool, schema)
	w.logger.Info("parquet history file opened", zap.Int("columns", len(fields)))
	return nil
}

// WriteRow buffers one iteration, writing a row group when the buffer is full
func (w *HistoryWriter) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	if w.builder == nil {
		return errors.New(errors.ErrorTypeInternal, "parquet history file not opened")
	}
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	for i, v := range values {
		switch b := w.builder.Field(i).(type) {
		case *array.Int64Builder:
			b.Append(int64(v))
		case *array.Float64Builder:
			b.Append(v)
		}
	}
	w.pending++
	w.rows++
	if w.pending >= w.groupRows {
		return w.flush()
	}
	return nil
}

func (w *HistoryWriter) flush() error {
	if w.pending == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	w.pending = 0
	if err := w.writer.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write parquet row group")
	}
	return nil
}

// Close writes the buffered rows and the footer
func (w *HistoryWriter) Close() error {
	if w.closed || w.writer == nil {
		return nil
	}
	w.closed = true
	defer w.builder.Release()

	err := w.flush()
	if cerr := w.writer.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to write parquet footer")
	}
	// the parquet writer closes the file it wraps
	if cerr := w.file.Close(); err == nil && cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close parquet history file")
	}
	if err != nil {
		return err
	}
	w.logger.Info("parquet history file closed", zap.Int("rows", w.rows))
	return nil
}

// codec maps the configured stream compression onto a Parquet column codec
func codec(alg compression.Algorithm) compress.Compression {
	switch alg {
	case compression.Gzip:
		return compress.Codecs.Gzip
	case compression.Snappy, compression.S2:
		return compress.Codecs.Snappy
	case compression.LZ4:
		return compress.Codecs.Lz4Raw
	case compression.Zstd:
		return compress.Codecs.Zstd
	default:
		return compress.Codecs.Uncompressed
	}
}
