package arrow

import (
	"os"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
)

// Dataset is a volume snapshot read back from an Arrow file
type Dataset struct {
	Metadata map[string]string
	Points   []int64
	Columns  map[field.ID][]float64
	Order    []field.ID
}

// ReadVolume loads the snapshot stored at path
func ReadVolume(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open volume file").
			WithDetail("path", path)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid arrow file")
	}
	defer r.Close()

	schema := r.Schema()
	ds := &Dataset{
		Metadata: make(map[string]string),
		Columns:  make(map[field.ID][]float64),
	}
	md := schema.Metadata()
	for i, k := range md.Keys() {
		ds.Metadata[k] = md.Values()[i]
	}
	for _, f := range schema.Fields()[1:] {
		ds.Order = append(ds.Order, field.ID(f.Name))
	}

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read arrow batch")
		}
		points, ok := rec.Column(0).(*array.Int64)
		if !ok {
			return nil, errors.New(errors.ErrorTypeData, "point column is not int64")
		}
		ds.Points = append(ds.Points, points.Int64Values()...)
		for c, id := range ds.Order {
			col, ok := rec.Column(c + 1).(*array.Float64)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeData, "column %s is not float64", id)
			}
			ds.Columns[id] = append(ds.Columns[id], col.Float64Values()...)
		}
	}
	return ds, nil
}
