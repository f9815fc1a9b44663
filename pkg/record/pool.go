package record

import (
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/pool"
)

// NewVolumePool returns a pool of volume records over catalog. Records come
// back from Put with their written marks cleared.
func NewVolumePool(catalog *field.Catalog) (*pool.Pool[*Volume], error) {
	if err := checkNamespace(catalog, field.Volume); err != nil {
		return nil, err
	}
	return pool.New(
		func() *Volume { return New[Point](catalog) },
		func(v *Volume) { v.Reset(Point{}) },
	), nil
}
