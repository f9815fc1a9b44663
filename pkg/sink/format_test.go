package sink

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ajitpratap0/feaout/pkg/field"
)

var (
	integer    = field.Descriptor{ID: field.InnerIter, Format: field.FormatInteger}
	fixed      = field.Descriptor{ID: field.RMSDispX, Format: field.FormatFixed}
	scientific = field.Descriptor{ID: field.VonMisesSum, Format: field.FormatScientific}
)

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "42", FormatCell(integer, 42))
	assert.Equal(t, "-3.512346", FormatCell(fixed, -3.5123456))
	assert.Equal(t, "2.5000e+05", FormatCell(scientific, 2.5e5))
}

func TestNonFiniteTokens(t *testing.T) {
	for _, d := range []field.Descriptor{integer, fixed, scientific} {
		assert.Equal(t, NegInf, FormatCell(d, math.Inf(-1)))
		assert.Equal(t, PosInf, FormatCell(d, math.Inf(1)))
		assert.Equal(t, NaN, FormatExact(d, math.NaN()))
	}
}

func TestFormatExactRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64().Draw(t, "v")
		got, err := ParseExact(FormatExact(fixed, v))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if math.Float64bits(got) != math.Float64bits(v) && !(math.IsNaN(v) && math.IsNaN(got)) {
			t.Fatalf("got %v, want %v", got, v)
		}
	})

	v, err := ParseExact(NegInf)
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, -1))
}
