package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
)

func historyCatalog(t *testing.T, cfg config.AnalysisConfig) *Catalog {
	t.Helper()
	cat, err := BuildHistoryCatalog(cfg)
	require.NoError(t, err)
	return cat
}

func TestSelectExpandsGroups(t *testing.T) {
	cat := historyCatalog(t, config.AnalysisConfig{GeometryMode: config.SmallDeformations, TimeMode: config.Static, SpatialDim: 3})

	got, err := Select(cat, DefaultHistoryGroups())
	require.NoError(t, err)
	ids := make([]ID, len(got))
	for i, d := range got {
		ids[i] = d.ID
	}
	assert.Equal(t, []ID{TimeIter, OuterIter, InnerIter, RMSDispX, RMSDispY, RMSDispZ}, ids)
}

func TestSelectKeepsRequestOrderAndDedupes(t *testing.T) {
	cat := historyCatalog(t, config.AnalysisConfig{GeometryMode: config.SmallDeformations, TimeMode: config.Static, SpatialDim: 2})

	got, err := Select(cat, []string{"VMS", "INNER_ITER", "ITER", "VMS"})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, VonMisesSum, got[0].ID)
	assert.Equal(t, InnerIter, got[1].ID)
	assert.Equal(t, TimeIter, got[2].ID)
	assert.Equal(t, OuterIter, got[3].ID)

	ordered, err := SelectOrdered(cat, []string{"VMS", "INNER_ITER"})
	require.NoError(t, err)
	assert.Equal(t, InnerIter, ordered[0].ID)
	assert.Equal(t, VonMisesSum, ordered[1].ID)
}

func TestSelectRejectsUnknown(t *testing.T) {
	cat := historyCatalog(t, config.AnalysisConfig{GeometryMode: config.SmallDeformations, TimeMode: config.Static, SpatialDim: 2})

	for _, name := range []string{"RMS_DISP_Q", "RMS_DISP_Z", "BGS_RES", "RMS_UTOL"} {
		_, err := Select(cat, []string{name})
		require.Error(t, err, name)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnregisteredField), name)
	}
}

func TestFormatAndKindStrings(t *testing.T) {
	assert.Equal(t, "integer", FormatInteger.String())
	assert.Equal(t, "fixed", FormatFixed.String())
	assert.Equal(t, "scientific", FormatScientific.String())
	assert.Equal(t, "residual", KindResidual.String())
	assert.Equal(t, "value", KindValue.String())
	assert.Equal(t, []string{"INNER_ITER", "VMS"}, IDStrings([]ID{InnerIter, VonMisesSum}))
}
