package parquet

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
)

func TestHistoryRoundTrip(t *testing.T) {
	for _, alg := range []compression.Algorithm{compression.None, compression.Snappy, compression.Zstd, compression.Gzip} {
		t.Run(string(alg), func(t *testing.T) {
			cat, err := field.BuildHistoryCatalog(config.AnalysisConfig{
				GeometryMode: config.SmallDeformations, TimeMode: config.Static, SpatialDim: 2,
			})
			require.NoError(t, err)
			fields := cat.Fields()

			path := filepath.Join(t.TempDir(), "history.parquet")
			w := NewHistoryWriter(path, alg, 2, nil)
			ctx := context.Background()
			require.NoError(t, w.Open(ctx, fields))

			rec, err := record.NewHistory(cat)
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				rec.Reset(record.Iteration{InnerIter: i})
				for _, d := range fields {
					require.NoError(t, rec.Set(d.ID, 0))
				}
				require.NoError(t, rec.Set(field.InnerIter, float64(i)))
				require.NoError(t, rec.Set(field.RMSDispX, -float64(i)-0.5))
				require.NoError(t, rec.Set(field.RMSDispY, math.Inf(-1)))
				require.NoError(t, w.WriteRow(ctx, rec.Snapshot()))
			}
			require.NoError(t, w.Close())
			require.NoError(t, w.Close())

			rdr, err := file.OpenParquetFile(path, false)
			require.NoError(t, err)
			defer rdr.Close()
			assert.Equal(t, 3, rdr.NumRowGroups())

			fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
			require.NoError(t, err)
			tbl, err := fr.ReadTable(ctx)
			require.NoError(t, err)
			defer tbl.Release()

			require.EqualValues(t, 5, tbl.NumRows())
			var inner []int64
			for _, chunk := range column(t, tbl, field.InnerIter) {
				inner = append(inner, chunk.(*array.Int64).Int64Values()...)
			}
			assert.Equal(t, []int64{0, 1, 2, 3, 4}, inner)

			var resid []float64
			for _, chunk := range column(t, tbl, field.RMSDispX) {
				resid = append(resid, chunk.(*array.Float64).Float64Values()...)
			}
			assert.Equal(t, []float64{-0.5, -1.5, -2.5, -3.5, -4.5}, resid)

			for _, chunk := range column(t, tbl, field.RMSDispY) {
				for _, v := range chunk.(*array.Float64).Float64Values() {
					assert.True(t, math.IsInf(v, -1))
				}
			}
		})
	}
}

func column(t *testing.T, tbl arrow.Table, id field.ID) []arrow.Array {
	t.Helper()
	idx := tbl.Schema().FieldIndices(string(id))
	require.Len(t, idx, 1)
	return tbl.Column(idx[0]).Data().Chunks()
}

func TestWriteBeforeOpen(t *testing.T) {
	w := NewHistoryWriter(filepath.Join(t.TempDir(), "x.parquet"), compression.None, 0, nil)
	cat, err := field.BuildHistoryCatalog(config.AnalysisConfig{
		GeometryMode: config.LargeDeformations, TimeMode: config.Static, SpatialDim: 3,
	})
	require.NoError(t, err)
	rec, err := record.NewHistory(cat)
	require.NoError(t, err)
	assert.Error(t, w.WriteRow(context.Background(), rec.Snapshot()))
	assert.NoError(t, w.Close())
}
