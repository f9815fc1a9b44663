package postgres

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
)

var analysis = config.AnalysisConfig{
	GeometryMode: config.LargeDeformations,
	TimeMode:     config.Static,
	SpatialDim:   2,
}

func fields(t *testing.T) (*field.Catalog, []field.Descriptor) {
	t.Helper()
	cat, err := field.BuildHistoryCatalog(analysis)
	require.NoError(t, err)
	sel, err := field.Select(cat, []string{"RMS_UTOL", "RMS_RTOL"})
	require.NoError(t, err)
	return cat, sel
}

func TestInsertSQL(t *testing.T) {
	_, sel := fields(t)
	assert.Equal(t,
		`INSERT INTO history (run_id, scope_time_iter, scope_outer_iter, scope_inner_iter, "RMS_UTOL", "RMS_RTOL") VALUES ($1, $2, $3, $4, $5, $6)`,
		InsertSQL(sel))
}

func TestSchemaSQLAddsOneColumnPerField(t *testing.T) {
	_, sel := fields(t)
	stmts := SchemaSQL(sel)
	require.Len(t, stmts, 4+len(sel))
	assert.Equal(t, `ALTER TABLE history ADD COLUMN IF NOT EXISTS "RMS_RTOL" DOUBLE PRECISION`, stmts[len(stmts)-1])
}

func TestInvalidConnectionString(t *testing.T) {
	_, sel := fields(t)
	w := New("postgres://%zz", "run", analysis, nil)
	err := w.Open(context.Background(), sel)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.NoError(t, w.Close())
}

// Runs against a real server when FEAOUT_TEST_POSTGRES_DSN is set.
func TestWritesRows(t *testing.T) {
	dsn := os.Getenv("FEAOUT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FEAOUT_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	cat, sel := fields(t)
	runID := uuid.NewString()

	w := New(dsn, runID, analysis, nil)
	require.NoError(t, w.Open(ctx, sel))
	rec := record.New[record.Iteration](cat)
	for i := 0; i < 3; i++ {
		rec.Reset(record.Iteration{InnerIter: i})
		require.NoError(t, rec.Set(field.RMSUTol, -float64(i)))
		require.NoError(t, rec.Set(field.RMSRTol, math.Inf(-1)))
		require.NoError(t, w.WriteRow(ctx, rec.Snapshot()))
	}
	require.NoError(t, w.Close())

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var n int
	var last, rtol float64
	err = conn.QueryRow(ctx,
		`SELECT count(*), min("RMS_UTOL"), min("RMS_RTOL") FROM history WHERE run_id = $1`, runID).
		Scan(&n, &last, &rtol)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, -2.0, last)
	assert.True(t, math.IsInf(rtol, -1))
}
