// Package record holds the most recently written value of every field in a
// catalog, for one iteration (history) or one spatial point (volume).
//
// History and volume records are the same named-field record parameterised
// by scope: Record[Iteration] lives for one solver iteration, Record[Point]
// for one point of one snapshot. Sinks never see a Record; they get a
// Snapshot, an immutable copy taken when the record is complete.
//
// # Basic Usage
//
//	rec, err := record.NewHistory(historyCatalog)
//	rec.Reset(record.Iteration{InnerIter: 3})
//	if err := rec.Set(field.InnerIter, 3); err != nil {
//	    return err // field not registered
//	}
//	snap := rec.Snapshot()
package record

import (
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
)

// Iteration scopes a history record to one solver iteration
type Iteration struct {
	TimeIter  int `json:"time_iter"`
	OuterIter int `json:"outer_iter"`
	InnerIter int `json:"inner_iter"`
	// ExtIter is the external iteration counter the linear header cadence uses
	ExtIter int `json:"ext_iter"`
}

// Point scopes a volume record to one spatial point
type Point struct {
	Index int `json:"index"`
}

// Scope is the set of record scopes
type Scope interface {
	Iteration | Point
}

// Record is a named-field record over a catalog
type Record[S Scope] struct {
	catalog *field.Catalog
	values  []float64
	written []bool
	scope   S
}

// History is the per-iteration record
type History = Record[Iteration]

// Volume is the per-point record
type Volume = Record[Point]

// New creates a record over catalog with every value zero and unwritten
func New[S Scope](catalog *field.Catalog) *Record[S] {
	return &Record[S]{
		catalog: catalog,
		values:  make([]float64, catalog.Len()),
		written: make([]bool, catalog.Len()),
	}
}

// NewHistory creates a history record; catalog must be a history catalog
func NewHistory(catalog *field.Catalog) (*History, error) {
	if err := checkNamespace(catalog, field.History); err != nil {
		return nil, err
	}
	return New[Iteration](catalog), nil
}

// NewVolume creates a volume record; catalog must be a volume catalog
func NewVolume(catalog *field.Catalog) (*Volume, error) {
	if err := checkNamespace(catalog, field.Volume); err != nil {
		return nil, err
	}
	return New[Point](catalog), nil
}

func checkNamespace(catalog *field.Catalog, want field.Namespace) error {
	if catalog == nil {
		return errors.New(errors.ErrorTypeInvariant, "nil catalog")
	}
	if catalog.Namespace() != want {
		return errors.New(errors.ErrorTypeInvariant, "catalog namespace mismatch").
			WithDetail("want", string(want)).
			WithDetail("got", string(catalog.Namespace()))
	}
	return nil
}

// Catalog returns the catalog the record is addressed by
func (r *Record[S]) Catalog() *field.Catalog {
	return r.catalog
}

// Reset starts a new scope. Values carry over; written marks are cleared.
func (r *Record[S]) Reset(scope S) {
	r.scope = scope
	for i := range r.written {
		r.written[i] = false
	}
}

// Scope returns the current scope
func (r *Record[S]) Scope() S {
	return r.scope
}

// Set overwrites the current value of id
func (r *Record[S]) Set(id field.ID, v float64) error {
	i, ok := r.catalog.Index(id)
	if !ok {
		return r.catalog.NotRegistered(id)
	}
	r.values[i] = v
	r.written[i] = true
	return nil
}

// Get returns the current value of id
func (r *Record[S]) Get(id field.ID) (float64, error) {
	i, ok := r.catalog.Index(id)
	if !ok {
		return 0, r.catalog.NotRegistered(id)
	}
	return r.values[i], nil
}

// Written reports whether id was set since the last Reset
func (r *Record[S]) Written(id field.ID) bool {
	i, ok := r.catalog.Index(id)
	return ok && r.written[i]
}

// Missing returns the catalog fields not set since the last Reset, in
// catalog order
func (r *Record[S]) Missing() []field.ID {
	var missing []field.ID
	for i, d := range r.catalog.Fields() {
		if !r.written[i] {
			missing = append(missing, d.ID)
		}
	}
	return missing
}

// Snapshot returns an immutable copy of the current values
func (r *Record[S]) Snapshot() Snapshot[S] {
	values := make([]float64, len(r.values))
	copy(values, r.values)
	return Snapshot[S]{
		catalog: r.catalog,
		values:  values,
		scope:   r.scope,
	}
}
