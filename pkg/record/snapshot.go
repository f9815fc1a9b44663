package record

import (
	"github.com/ajitpratap0/feaout/pkg/field"
)

// Snapshot is an immutable copy of a record, handed to sinks. Values are
// stored as float64 and returned bit for bit.
type Snapshot[S Scope] struct {
	catalog *field.Catalog
	values  []float64
	scope   S
}

// HistorySnapshot is the snapshot of a history record
type HistorySnapshot = Snapshot[Iteration]

// VolumeSnapshot is the snapshot of a volume record
type VolumeSnapshot = Snapshot[Point]

// Scope returns the iteration or point the snapshot was taken for
func (s Snapshot[S]) Scope() S {
	return s.scope
}

// Catalog returns the catalog the snapshot is addressed by
func (s Snapshot[S]) Catalog() *field.Catalog {
	return s.catalog
}

// Len returns the number of values
func (s Snapshot[S]) Len() int {
	return len(s.values)
}

// Get returns the value of id
func (s Snapshot[S]) Get(id field.ID) (float64, error) {
	i, ok := s.catalog.Index(id)
	if !ok {
		return 0, s.catalog.NotRegistered(id)
	}
	return s.values[i], nil
}

// Values returns the values in catalog order
func (s Snapshot[S]) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Select returns the values of fields, in the given order
func (s Snapshot[S]) Select(fields []field.Descriptor) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, d := range fields {
		v, err := s.Get(d.ID)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
