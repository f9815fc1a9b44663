package csv

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// PointColumn heads the point index column of volume files
const PointColumn = "PointID"

// VolumeWriter writes each volume snapshot as a CSV file at path
type VolumeWriter struct {
	path   string
	logger *zap.Logger

	fields []field.Descriptor
	file   *os.File
	writer *csv.Writer
}

var (
	_ sink.VolumeWriter    = (*VolumeWriter)(nil)
	_ sink.SnapshotAborter = (*VolumeWriter)(nil)
)

// NewVolumeWriter creates a volume writer
func NewVolumeWriter(path string, logger *zap.Logger) *VolumeWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VolumeWriter{
		path:   path,
		logger: logger.With(zap.String("sink", "csv_volume"), zap.String("path", path)),
	}
}

func (w *VolumeWriter) Name() string { return "csv_volume" }

func (w *VolumeWriter) Open(_ context.Context, fields []field.Descriptor) error {
	w.fields = append([]field.Descriptor(nil), fields...)
	return nil
}

// BeginSnapshot truncates the file and writes the header
func (w *VolumeWriter) BeginSnapshot(_ context.Context, it record.Iteration, points int) error {
	file, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create volume file").
			WithDetail("path", w.path)
	}
	w.file = file
	w.writer = csv.NewWriter(file)

	header := make([]string, 0, len(w.fields)+1)
	header = append(header, PointColumn)
	for _, d := range w.fields {
		header = append(header, d.Label)
	}
	if err := w.writer.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write headers")
	}
	w.logger.Debug("volume snapshot started", zap.Int("inner_iter", it.InnerIter), zap.Int("points", points))
	return nil
}

func (w *VolumeWriter) WritePoint(_ context.Context, snap record.VolumeSnapshot) error {
	if w.writer == nil {
		return errors.New(errors.ErrorTypeInternal, "volume snapshot not started")
	}
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	row := make([]string, 0, len(values)+1)
	row = append(row, strconv.Itoa(snap.Scope().Index))
	for i, v := range values {
		row = append(row, sink.FormatExact(w.fields[i], v))
	}
	if err := w.writer.Write(row); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write point")
	}
	return nil
}

// EndSnapshot flushes and closes the file
func (w *VolumeWriter) EndSnapshot(context.Context) error {
	if w.file == nil {
		return nil
	}
	w.writer.Flush()
	err := w.writer.Error()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file, w.writer = nil, nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish volume file")
	}
	return nil
}

// AbortSnapshot closes and removes the partial file
func (w *VolumeWriter) AbortSnapshot(context.Context) error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file, w.writer = nil, nil
	if rerr := os.Remove(w.path); err == nil && !os.IsNotExist(rerr) {
		err = rerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to discard volume file")
	}
	return nil
}

// Close finishes a snapshot left open
func (w *VolumeWriter) Close() error {
	return w.EndSnapshot(context.Background())
}
