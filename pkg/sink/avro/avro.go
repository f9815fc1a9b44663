// Package avro writes history rows as an Avro object container file.
//
// The writer schema is a flat record with one field per history column:
// long for integer fields, double for the rest. Field IDs become Avro
// field names after replacing characters Avro does not allow; the label is
// kept as the field doc.
package avro

import (
	"context"
	"os"
	"strings"

	"github.com/linkedin/goavro/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/json"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// RecordName is the name of the row record in the schema
const RecordName = "HistoryRow"

type schemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Doc  string `json:"doc,omitempty"`
}

type schemaRecord struct {
	Type      string        `json:"type"`
	Name      string        `json:"name"`
	Namespace string        `json:"namespace"`
	Fields    []schemaField `json:"fields"`
}

// HistoryWriter is the Avro history sink
type HistoryWriter struct {
	path   string
	alg    compression.Algorithm
	logger *zap.Logger

	fields []field.Descriptor
	names  []string
	file   *os.File
	ocf    *goavro.OCFWriter
	rows   int
	closed bool
}

var _ sink.HistoryWriter = (*HistoryWriter)(nil)

// NewHistoryWriter creates an Avro writer for path. alg selects the block
// codec.
func NewHistoryWriter(path string, alg compression.Algorithm, logger *zap.Logger) *HistoryWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryWriter{
		path:   path,
		alg:    alg,
		logger: logger.With(zap.String("sink", "avro"), zap.String("path", path)),
	}
}

func (w *HistoryWriter) Name() string { return "avro" }

// Schema returns the Avro schema for fields
func Schema(fields []field.Descriptor) (string, error) {
	rec := schemaRecord{Type: "record", Name: RecordName, Namespace: "feaout", Fields: make([]schemaField, len(fields))}
	for i, d := range fields {
		typ := "double"
		if d.Format == field.FormatInteger {
			typ = "long"
		}
		rec.Fields[i] = schemaField{Name: FieldName(d.ID), Type: typ, Doc: d.Label}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to build avro schema")
	}
	return string(data), nil
}

// FieldName maps a field ID onto an Avro name
func FieldName(id field.ID) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, string(id))
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

// Open creates the container file and writes its header
func (w *HistoryWriter) Open(_ context.Context, fields []field.Descriptor) error {
	schema, err := Schema(fields)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "invalid avro schema")
	}

	file, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create avro history file").
			WithDetail("path", w.path)
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               file,
		Codec:           codec,
		CompressionName: blockCodec(w.alg),
	})
	if err != nil {
		file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create avro writer")
	}

	w.fields = append([]field.Descriptor(nil), fields...)
	w.names = make([]string, len(fields))
	for i, d := range fields {
		w.names[i] = FieldName(d.ID)
	}
	w.file = file
	w.ocf = ocf
	w.logger.Info("avro history file opened", zap.Int("columns", len(fields)))
	return nil
}

// WriteRow appends one iteration as its own block, so the file is readable
// after every row
func (w *HistoryWriter) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	if w.ocf == nil {
		return errors.New(errors.ErrorTypeInternal, "avro history file not opened")
	}
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	datum := make(map[string]interface{}, len(values))
	for i, v := range values {
		if w.fields[i].Format == field.FormatInteger {
			datum[w.names[i]] = int64(v)
		} else {
			datum[w.names[i]] = v
		}
	}
	if err := w.ocf.Append([]interface{}{datum}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to append avro row")
	}
	w.rows++
	return nil
}

// Close closes the file
func (w *HistoryWriter) Close() error {
	if w.closed || w.file == nil {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close avro history file")
	}
	w.logger.Info("avro history file closed", zap.Int("rows", w.rows))
	return nil
}

func blockCodec(alg compression.Algorithm) string {
	switch alg {
	case compression.Gzip, compression.Zstd:
		// the pinned goavro has no zstandard codec
		return goavro.CompressionDeflateLabel
	case compression.Snappy, compression.S2:
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}
