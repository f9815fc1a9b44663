package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
)

func historyCatalog(t testing.TB) *field.Catalog {
	c, err := field.BuildHistoryCatalog(config.AnalysisConfig{
		GeometryMode: config.SmallDeformations,
		TimeMode:     config.Static,
		SpatialDim:   2,
	})
	require.NoError(t, err)
	return c
}

func volumeCatalog(t testing.TB) *field.Catalog {
	c, err := field.BuildVolumeCatalog(config.AnalysisConfig{
		GeometryMode: config.SmallDeformations,
		TimeMode:     config.Dynamic,
		SpatialDim:   3,
	})
	require.NoError(t, err)
	return c
}

func TestNewHistoryRejectsVolumeCatalog(t *testing.T) {
	_, err := NewHistory(volumeCatalog(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvariant))

	_, err = NewVolume(historyCatalog(t))
	require.Error(t, err)

	_, err = NewHistory(nil)
	require.Error(t, err)
}

func TestSetGet(t *testing.T) {
	rec, err := NewHistory(historyCatalog(t))
	require.NoError(t, err)

	require.NoError(t, rec.Set(field.RMSDispX, -3.5))
	v, err := rec.Get(field.RMSDispX)
	require.NoError(t, err)
	assert.Equal(t, -3.5, v)

	require.NoError(t, rec.Set(field.RMSDispX, -4))
	v, err = rec.Get(field.RMSDispX)
	require.NoError(t, err)
	assert.Equal(t, -4.0, v)
}

func TestUnregisteredField(t *testing.T) {
	rec, err := NewHistory(historyCatalog(t))
	require.NoError(t, err)

	err = rec.Set(field.RMSDispZ, 1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnregisteredField))

	_, err = rec.Get("RMS_DISP_Q")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnregisteredField))

	_, err = rec.Snapshot().Get(field.BGSDispX)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnregisteredField))
}

func TestSnapshotIsACopy(t *testing.T) {
	rec, err := NewHistory(historyCatalog(t))
	require.NoError(t, err)
	rec.Reset(Iteration{InnerIter: 7})
	require.NoError(t, rec.Set(field.VonMisesSum, 1.25e6))

	snap := rec.Snapshot()
	require.NoError(t, rec.Set(field.VonMisesSum, 9))
	rec.Reset(Iteration{InnerIter: 8})

	v, err := snap.Get(field.VonMisesSum)
	require.NoError(t, err)
	assert.Equal(t, 1.25e6, v)
	assert.Equal(t, 7, snap.Scope().InnerIter)

	values := snap.Values()
	values[0] = 42
	again, _ := snap.Get(field.TimeIter)
	assert.Equal(t, 0.0, again)
}

func TestWrittenAndMissing(t *testing.T) {
	cat := historyCatalog(t)
	rec, err := NewHistory(cat)
	require.NoError(t, err)

	assert.Equal(t, cat.IDs(), rec.Missing())

	for _, id := range cat.IDs() {
		require.NoError(t, rec.Set(id, 1))
	}
	assert.Empty(t, rec.Missing())
	assert.True(t, rec.Written(field.LoadRamp))
	assert.False(t, rec.Written(field.RMSDispZ))

	rec.Reset(Iteration{InnerIter: 1})
	assert.Len(t, rec.Missing(), cat.Len())

	// values carry over across a reset
	v, err := rec.Get(field.LoadRamp)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestSnapshotSelect(t *testing.T) {
	cat := historyCatalog(t)
	rec, err := NewHistory(cat)
	require.NoError(t, err)
	require.NoError(t, rec.Set(field.InnerIter, 3))
	require.NoError(t, rec.Set(field.RMSDispY, -2))

	fields, err := field.Select(cat, []string{"RMS_DISP_Y", "INNER_ITER"})
	require.NoError(t, err)

	values, err := rec.Snapshot().Select(fields)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 3}, values)
}

func TestSnapshotRoundTripIsBitIdentical(t *testing.T) {
	cat := historyCatalog(t)
	ids := cat.IDs()

	rapid.Check(t, func(t *rapid.T) {
		rec := New[Iteration](cat)
		want := make(map[field.ID]uint64, len(ids))
		for _, id := range ids {
			bits := rapid.Uint64().Draw(t, string(id))
			want[id] = bits
			if err := rec.Set(id, math.Float64frombits(bits)); err != nil {
				t.Fatalf("set %s: %v", id, err)
			}
		}

		snap := rec.Snapshot()
		for _, id := range ids {
			v, err := snap.Get(id)
			if err != nil {
				t.Fatalf("get %s: %v", id, err)
			}
			if math.Float64bits(v) != want[id] {
				t.Fatalf("%s: got bits %x, want %x", id, math.Float64bits(v), want[id])
			}
		}
	})
}

func TestNonFiniteValuesSurvive(t *testing.T) {
	rec, err := NewHistory(historyCatalog(t))
	require.NoError(t, err)
	require.NoError(t, rec.Set(field.RMSDispX, math.Inf(-1)))
	require.NoError(t, rec.Set(field.RMSDispY, math.NaN()))

	snap := rec.Snapshot()
	x, _ := snap.Get(field.RMSDispX)
	y, _ := snap.Get(field.RMSDispY)
	assert.True(t, math.IsInf(x, -1))
	assert.True(t, math.IsNaN(y))
}

func TestVolumePoolClearsWrittenMarks(t *testing.T) {
	cat := volumeCatalog(t)
	p, err := NewVolumePool(cat)
	require.NoError(t, err)

	rec := p.Get()
	rec.Reset(Point{Index: 12})
	require.NoError(t, rec.Set(field.CoordZ, 0.5))
	assert.True(t, rec.Written(field.CoordZ))
	p.Put(rec)

	again := p.Get()
	assert.False(t, again.Written(field.CoordZ))
	assert.Equal(t, cat, again.Catalog())

	_, err = NewVolumePool(historyCatalog(t))
	require.Error(t, err)
}
