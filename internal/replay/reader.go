package replay

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/json"
)

// Reader decodes a trace one frame at a time
type Reader struct {
	path   string
	logger *zap.Logger

	closers []io.Closer
	buf     *bufio.Reader
	partial []byte
	line    int
	header  Header

	// follow keeps an unterminated last line for the next read instead of
	// decoding it
	follow bool
}

// Open opens the trace at path and reads its header
func Open(path string, logger *zap.Logger) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open trace").
			WithDetail("path", path)
	}
	src, err := compression.NewReader(file, compression.FromExtension(path))
	if err != nil {
		file.Close()
		return nil, err
	}
	r, err := newReader(src, path, logger)
	if err != nil {
		src.Close()
		file.Close()
		return nil, err
	}
	r.closers = []io.Closer{src, file}
	return r, nil
}

// NewReader reads a trace from src. The caller keeps ownership of src.
func NewReader(src io.Reader, logger *zap.Logger) (*Reader, error) {
	return newReader(src, "", logger)
}

func newReader(src io.Reader, path string, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{
		path:   path,
		logger: logger.With(zap.String("component", "replay"), zap.String("trace", path)),
		buf:    bufio.NewReaderSize(src, 64*1024),
	}

	data, err := r.nextLine()
	if err == io.EOF {
		return nil, errors.New(errors.ErrorTypeData, "trace is empty").WithDetail("path", path)
	}
	if err != nil {
		return nil, err
	}
	if err := json.UnmarshalStrict(data, &r.header); err != nil {
		return nil, r.dataError(err, "malformed trace header")
	}
	if r.header.Type != TypeRun {
		return nil, errors.Newf(errors.ErrorTypeData, "trace starts with %q, want %q", r.header.Type, TypeRun).
			WithDetail("line", r.line)
	}
	if err := r.header.Analysis.Validate(); err != nil {
		return nil, err
	}

	r.logger.Debug("trace opened",
		zap.String("geometry_mode", string(r.header.Analysis.GeometryMode)),
		zap.Int("points", r.header.Geometry.NPoints()))
	return r, nil
}

// Header returns the run header
func (r *Reader) Header() Header { return r.header }

// Line returns the number of lines consumed so far
func (r *Reader) Line() int { return r.line }

// Next returns the next frame, or io.EOF when the trace is exhausted
func (r *Reader) Next() (*Frame, error) {
	data, err := r.nextLine()
	if err != nil {
		return nil, err
	}
	var f Frame
	if err := json.UnmarshalStrict(data, &f); err != nil {
		return nil, r.dataError(err, "malformed trace frame")
	}
	if f.Type != TypeIteration {
		return nil, errors.Newf(errors.ErrorTypeData, "unexpected %q line in trace", f.Type).
			WithDetail("line", r.line)
	}
	if n, want := len(f.Nodes), r.header.Geometry.NPoints(); n != 0 && n != want {
		return nil, errors.Newf(errors.ErrorTypeData, "frame carries %d nodes, the mesh has %d points", n, want).
			WithDetail("path", r.path).
			WithDetail("line", r.line)
	}
	return &f, nil
}

// nextLine returns the next non-blank line without its terminator
func (r *Reader) nextLine() ([]byte, error) {
	for {
		chunk, err := r.buf.ReadBytes('\n')
		r.partial = append(r.partial, chunk...)

		if err == io.EOF {
			if r.follow || len(bytes.TrimSpace(r.partial)) == 0 {
				return nil, io.EOF
			}
		} else if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read trace").
				WithDetail("path", r.path)
		}

		line := bytes.TrimSpace(r.partial)
		r.partial = r.partial[:0]
		r.line++
		if len(line) == 0 {
			continue
		}
		return append([]byte(nil), line...), nil
	}
}

func (r *Reader) dataError(err error, msg string) error {
	return errors.Wrap(err, errors.ErrorTypeData, msg).
		WithDetail("path", r.path).
		WithDetail("line", r.line)
}

// Close closes the decompressor and the file
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}
