// Package field defines the named output fields of the reporting subsystem and
// the catalogs that declare which of them exist for a given analysis.
//
// A catalog is built once per run from an immutable config.AnalysisConfig and
// never changes afterwards. Registration order is column order: screen tables,
// history files and volume datasets all lay out their columns by walking
// Catalog.Fields.
//
// # Basic Usage
//
//	hist, err := field.BuildHistoryCatalog(cfg.Analysis)
//	if err != nil {
//	    return err // configuration error
//	}
//	for _, d := range hist.Fields() {
//	    fmt.Println(d.ID, d.Label, d.Group)
//	}
package field

import "fmt"

// ID is the stable key of a field, unique within its namespace. Downstream
// consumers identify columns by ID, never by position.
type ID string

// Namespace separates history fields from volume fields
type Namespace string

const (
	// History fields are reported once per solver iteration
	History Namespace = "history"
	// Volume fields are reported once per spatial point
	Volume Namespace = "volume"
)

// Format is the numeric format class of a field
type Format int

const (
	// FormatInteger renders the value as an integer
	FormatInteger Format = iota
	// FormatFixed renders the value in fixed-point notation
	FormatFixed
	// FormatScientific renders the value in scientific notation
	FormatScientific
)

// String returns the format class name
func (f Format) String() string {
	switch f {
	case FormatInteger:
		return "integer"
	case FormatFixed:
		return "fixed"
	case FormatScientific:
		return "scientific"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// MarshalText implements encoding.TextMarshaler
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// Kind tells plain values apart from residuals
type Kind int

const (
	// KindValue is a plain reported value
	KindValue Kind = iota
	// KindResidual is a log10 convergence residual
	KindResidual
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindResidual:
		return "residual"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Descriptor describes a registered field. Descriptors are values; a catalog
// hands out copies, so they cannot be mutated after registration.
type Descriptor struct {
	ID     ID     `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Format Format `json:"format" yaml:"format"`
	// Group clusters related fields under one header, e.g. RMS_RES
	Group string `json:"group" yaml:"group"`
	Kind  Kind   `json:"kind" yaml:"kind"`
}
