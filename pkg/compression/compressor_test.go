package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/feaout/pkg/errors"
)

const historyCSV = `"Inner_Iter","rms[DispX]","rms[DispY]","VonMises"
0,-3.000000,-4.000000,2.500000e+05
1,-3.500000,-4.500000,2.600000e+05
`

func TestStreamRoundTrip(t *testing.T) {
	payload := strings.Repeat(historyCSV, 200)

	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		for _, level := range []Level{Fastest, Default, Best} {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, alg, level)
			require.NoError(t, err, alg)
			_, err = io.WriteString(w, payload)
			require.NoError(t, err, alg)
			require.NoError(t, w.Close(), alg)

			if alg != None {
				assert.Less(t, buf.Len(), len(payload), alg)
			}

			r, err := NewReader(&buf, alg)
			require.NoError(t, err, alg)
			got, err := io.ReadAll(r)
			require.NoError(t, err, alg)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, string(got), alg)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)

	alg, err = ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)

	_, err = ParseAlgorithm("brotli")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, "", Extension(None))
	assert.Equal(t, ".zst", Extension(Zstd))
	assert.Equal(t, Zstd, FromExtension("trace.json.zst"))
	assert.Equal(t, Gzip, FromExtension("history.csv.gz"))
	assert.Equal(t, None, FromExtension("history.csv"))
}

func TestNoneWriterLeavesDestinationOpen(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, None, Default)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, err = buf.WriteString("still writable")
	assert.NoError(t, err)
}
