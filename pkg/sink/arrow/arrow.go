// Package arrow writes volume snapshots as Arrow IPC files.
//
// Each snapshot rewrites the file with one record batch: an int64 point
// column followed by one float64 column per volume field, named by field ID.
// Labels, groups and the iteration counters travel as schema metadata.
package arrow

import (
	"context"
	"os"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// PointColumn is the name of the point index column
const PointColumn = "point"

// Schema metadata keys
const (
	MetaTimeIter  = "feaout.time_iter"
	MetaOuterIter = "feaout.outer_iter"
	MetaInnerIter = "feaout.inner_iter"
	MetaLabel     = "feaout.label"
	MetaGroup     = "feaout.group"
)

// VolumeWriter is the Arrow volume sink
type VolumeWriter struct {
	path   string
	pool   memory.Allocator
	logger *zap.Logger

	fields  []field.Descriptor
	file    *os.File
	writer  *ipc.FileWriter
	builder *array.RecordBuilder
	points  int
}

var (
	_ sink.VolumeWriter    = (*VolumeWriter)(nil)
	_ sink.SnapshotAborter = (*VolumeWriter)(nil)
)

// NewVolumeWriter creates an Arrow writer for path
func NewVolumeWriter(path string, logger *zap.Logger) *VolumeWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VolumeWriter{
		path:   path,
		pool:   memory.NewGoAllocator(),
		logger: logger.With(zap.String("sink", "arrow"), zap.String("path", path)),
	}
}

func (w *VolumeWriter) Name() string { return "arrow" }

func (w *VolumeWriter) Open(_ context.Context, fields []field.Descriptor) error {
	w.fields = append([]field.Descriptor(nil), fields...)
	return nil
}

// Schema returns the Arrow schema for fields at iteration it
func Schema(fields []field.Descriptor, it record.Iteration) *arrow.Schema {
	cols := make([]arrow.Field, 0, len(fields)+1)
	cols = append(cols, arrow.Field{Name: PointColumn, Type: arrow.PrimitiveTypes.Int64})
	for _, d := range fields {
		cols = append(cols, arrow.Field{
			Name: string(d.ID),
			Type: arrow.PrimitiveTypes.Float64,
			Metadata: arrow.NewMetadata(
				[]string{MetaLabel, MetaGroup},
				[]string{d.Label, d.Group},
			),
		})
	}
	meta := arrow.NewMetadata(
		[]string{MetaTimeIter, MetaOuterIter, MetaInnerIter},
		[]string{strconv.Itoa(it.TimeIter), strconv.Itoa(it.OuterIter), strconv.Itoa(it.InnerIter)},
	)
	return arrow.NewSchema(cols, &meta)
}

// BeginSnapshot truncates the file and starts a record batch
func (w *VolumeWriter) BeginSnapshot(_ context.Context, it record.Iteration, points int) error {
	schema := Schema(w.fields, it)

	file, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create volume file").
			WithDetail("path", w.path)
	}
	fw, err := ipc.NewFileWriter(file, ipc.WithSchema(schema), ipc.WithAllocator(w.pool))
	if err != nil {
		file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow writer")
	}

	w.file = file
	w.writer = fw
	w.builder = array.NewRecordBuilder(w.pool, schema)
	w.builder.Reserve(points)
	w.points = 0
	return nil
}

// WritePoint appends one point to the batch
func (w *VolumeWriter) WritePoint(_ context.Context, snap record.VolumeSnapshot) error {
	if w.builder == nil {
		return errors.New(errors.ErrorTypeInternal, "volume snapshot not started")
	}
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	w.builder.Field(0).(*array.Int64Builder).Append(int64(snap.Scope().Index))
	for i, v := range values {
		w.builder.Field(i + 1).(*array.Float64Builder).Append(v)
	}
	w.points++
	return nil
}

// EndSnapshot writes the batch and closes the file
func (w *VolumeWriter) EndSnapshot(context.Context) error {
	if w.builder == nil {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	w.builder.Release()
	w.builder = nil

	err := w.writer.Write(rec)
	if cerr := w.writer.Close(); err == nil {
		err = cerr
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.writer, w.file = nil, nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write arrow snapshot")
	}
	w.logger.Debug("volume snapshot written", zap.Int("points", w.points))
	return nil
}

// AbortSnapshot drops the batch being built and removes the partial file
func (w *VolumeWriter) AbortSnapshot(context.Context) error {
	if w.builder == nil {
		return nil
	}
	w.builder.Release()
	w.builder = nil

	err := w.writer.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.writer, w.file = nil, nil
	if rerr := os.Remove(w.path); err == nil && !os.IsNotExist(rerr) {
		err = rerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to discard arrow snapshot")
	}
	w.logger.Debug("volume snapshot discarded", zap.Int("points", w.points))
	return nil
}

// Close finishes a snapshot left open
func (w *VolumeWriter) Close() error {
	return w.EndSnapshot(context.Background())
}
