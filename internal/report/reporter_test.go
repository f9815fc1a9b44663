package report

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/gate"
	"github.com/ajitpratap0/feaout/pkg/metrics"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
	"github.com/ajitpratap0/feaout/pkg/sink/arrow"
	"github.com/ajitpratap0/feaout/pkg/testutil"
)

type ReporterSuite struct {
	testutil.ReportSuite
}

func TestReporterSuite(t *testing.T) {
	suite.Run(t, new(ReporterSuite))
}

func (s *ReporterSuite) config(analysis config.AnalysisConfig) *config.Config {
	cfg := config.NewDefault()
	cfg.Analysis = analysis
	cfg.Output.HistoryFile = s.Path("history.csv")
	cfg.Output.VolumeFile = s.Path("flow.arrow")
	return cfg
}

func (s *ReporterSuite) TestLinearRunWritesHistoryFile() {
	cfg := s.config(testutil.Analysis(config.SmallDeformations, config.Static, 2, false))
	screen := sink.NewRecorder("screen")
	r, err := New(Options{Config: cfg, Logger: testutil.TestLogger(s.T()), ScreenSink: screen})
	s.Require().NoError(err)

	state, _ := testutil.NewFakeRun(2, 0)
	for i := 0; i < 3; i++ {
		_, err := r.ReportIteration(s.Context(), state, record.Iteration{InnerIter: i, ExtIter: i})
		s.Require().NoError(err)
	}
	s.Require().NoError(r.Close())

	lines := strings.Split(strings.TrimSpace(s.ReadFile("history.csv")), "\n")
	s.Require().Len(lines, 4)
	s.Equal("Time_Iter,Outer_Iter,Inner_Iter,rms[DispX],rms[DispY]", lines[0])
	cells := strings.Split(lines[3], ",")
	s.Require().Len(cells, 5)
	s.Equal([]string{"0", "0", "2"}, cells[:3])
	for i, want := range []float64{-3, -4} {
		got, err := sink.ParseExact(cells[3+i])
		s.Require().NoError(err)
		s.InDelta(want, got, 1e-12)
	}

	s.Equal(1, screen.Headers, "header only at ExtIter 0")
	s.Len(screen.Rows, 3)
	s.Equal(1, screen.Closed)
}

func (s *ReporterSuite) TestNonlinearHeaderOnEachNewtonRestart() {
	cfg := s.config(testutil.Analysis(config.LargeDeformations, config.Static, 3, false))
	screen := sink.NewRecorder("screen")
	r, err := New(Options{Config: cfg, Logger: testutil.TestLogger(s.T()), ScreenSink: screen})
	s.Require().NoError(err)
	defer r.Close()

	state, _ := testutil.NewFakeRun(3, 0)
	for ext := 0; ext < 2; ext++ {
		for inner := 0; inner < 4; inner++ {
			d, err := r.ReportIteration(s.Context(), state, record.Iteration{InnerIter: inner, ExtIter: ext})
			s.Require().NoError(err)
			s.Equal(inner == 0, d.EmitHeader)
		}
	}
	s.Equal(2, screen.Headers)
	s.Len(screen.Rows, 8)

	id, v, err := r.ConvergenceValue()
	s.Require().NoError(err)
	s.Equal(field.RMSUTol, id)
	s.InDelta(-6, v, 1e-12)
}

func (s *ReporterSuite) TestMultizoneOptOutKeepsHistoryFile() {
	cfg := s.config(testutil.Analysis(config.SmallDeformations, config.Static, 2, true))
	screen := sink.NewRecorder("screen")
	hist := sink.NewRecorder("extra")
	r, err := New(Options{
		Config:     cfg,
		Logger:     testutil.TestLogger(s.T()),
		ScreenSink: screen,
		History:    []sink.HistoryWriter{hist},
	})
	s.Require().NoError(err)

	state, _ := testutil.NewFakeRun(2, 0)
	d, err := r.ReportIteration(s.Context(), state, record.Iteration{})
	s.Require().NoError(err)
	s.Equal(gate0(false, false), d)
	s.Require().NoError(r.Close())

	s.Zero(screen.Headers)
	s.Empty(screen.Rows)
	s.Len(hist.Rows, 1)
	s.Len(strings.Split(strings.TrimSpace(s.ReadFile("history.csv")), "\n"), 2)
}

func (s *ReporterSuite) TestNonMasterComputesButNeverWrites() {
	cfg := s.config(testutil.Analysis(config.SmallDeformations, config.Dynamic, 3, false))
	cfg.Output.Rank = 2
	screen := sink.NewRecorder("screen")
	r, err := New(Options{Config: cfg, Logger: testutil.TestLogger(s.T()), ScreenSink: screen})
	s.Require().NoError(err)
	s.False(r.IsMaster())

	state, geo := testutil.NewFakeRun(3, 4)
	d, err := r.ReportIteration(s.Context(), state, record.Iteration{})
	s.Require().NoError(err)
	s.True(d.EmitHeader)
	s.Require().NoError(r.ReportVolume(s.Context(), state, geo, record.Iteration{}))
	s.Require().NoError(r.Close())

	snap, ok := r.LastSnapshot()
	s.True(ok)
	s.Equal(r.HistoryCatalog().Len(), snap.Len())
	s.Zero(screen.Headers)
	s.NoFileExists(s.Path("history.csv"))
	s.NoFileExists(s.Path("flow.arrow"))
}

func (s *ReporterSuite) TestVolumeSnapshotReachesEverySink() {
	cfg := s.config(testutil.Analysis(config.SmallDeformations, config.Dynamic, 3, false))
	cfg.Output.VolumeCSVFile = s.Path("flow.csv")
	extra := sink.NewRecorder("extra")
	r, err := New(Options{
		Config:     cfg,
		Logger:     testutil.TestLogger(s.T()),
		ScreenSink: sink.NewRecorder("screen"),
		Volume:     []sink.VolumeWriter{extra},
	})
	s.Require().NoError(err)

	state, geo := testutil.NewFakeRun(3, 5)
	it := record.Iteration{TimeIter: 7, InnerIter: 2}
	s.Require().NoError(r.ReportVolume(s.Context(), state, geo, it))
	s.Require().NoError(r.Close())

	s.Equal([]record.Iteration{it}, extra.Snapshots)
	s.Require().Len(extra.Points, 5)
	v, err := extra.Points[4].Get(field.Stress[5])
	s.Require().NoError(err)
	s.Equal(64.0, v)
	s.Equal(record.Point{Index: 4}, extra.Points[4].Scope())

	ds, err := arrow.ReadVolume(s.Path("flow.arrow"))
	s.Require().NoError(err)
	s.Equal([]int64{0, 1, 2, 3, 4}, ds.Points)
	s.Equal("7", ds.Metadata[arrow.MetaTimeIter])
	s.Equal("2", ds.Metadata[arrow.MetaInnerIter])

	csvLines := strings.Split(strings.TrimSpace(s.ReadFile("flow.csv")), "\n")
	s.Len(csvLines, 6)
}

func (s *ReporterSuite) TestFailedVolumeLoadDiscardsSnapshot() {
	cfg := s.config(testutil.Analysis(config.SmallDeformations, config.Static, 2, false))
	cfg.Output.VolumeCSVFile = s.Path("flow.csv")
	extra := sink.NewRecorder("extra")
	r, err := New(Options{
		Config:     cfg,
		Logger:     testutil.TestLogger(s.T()),
		ScreenSink: sink.NewRecorder("screen"),
		Volume:     []sink.VolumeWriter{extra},
	})
	s.Require().NoError(err)
	defer r.Close()

	state, geo := testutil.NewFakeRun(2, 3)
	good := state.Nodes[1].Sigma
	state.Nodes[1].Sigma = good[:1]
	err = r.ReportVolume(s.Context(), state, geo, record.Iteration{InnerIter: 1})
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeData))

	s.Equal(1, extra.Aborted)
	s.Zero(extra.Ended)
	s.NoFileExists(s.Path("flow.arrow"))
	s.NoFileExists(s.Path("flow.csv"))

	state.Nodes[1].Sigma = good
	s.Require().NoError(r.ReportVolume(s.Context(), state, geo, record.Iteration{InnerIter: 2}))
	s.Equal(1, extra.Ended)

	ds, err := arrow.ReadVolume(s.Path("flow.arrow"))
	s.Require().NoError(err)
	s.Equal([]int64{0, 1, 2}, ds.Points)
	s.Equal("2", ds.Metadata[arrow.MetaInnerIter])
}

func (s *ReporterSuite) TestHistoryMirrors() {
	cfg := s.config(testutil.Analysis(config.LargeDeformations, config.Static, 2, false))
	cfg.Output.HistoryFile = ""
	cfg.Output.JSONHistoryFile = s.Path("history.jsonl")
	cfg.Output.HistoryDatabase = s.Path("history.db")
	cfg.Output.ParquetHistoryFile = s.Path("history.parquet")
	cfg.Output.AvroHistoryFile = s.Path("history.avro")
	cfg.Output.Compression = "zstd"
	r, err := New(Options{
		Config:     cfg,
		Logger:     testutil.TestLogger(s.T()),
		RunID:      "run-db",
		ScreenSink: sink.NewRecorder("screen"),
	})
	s.Require().NoError(err)

	state, _ := testutil.NewFakeRun(2, 0)
	_, err = r.ReportIteration(s.Context(), state, record.Iteration{InnerIter: 1})
	s.Require().NoError(err)
	s.Require().NoError(r.Close())

	s.Contains(s.ReadFile("history.jsonl"), `"type":"header"`)
	s.FileExists(s.Path("history.db"))
	s.FileExists(s.Path("history.parquet"))
	s.FileExists(s.Path("history.avro"))
	s.NoFileExists(s.Path("history.csv"))
	s.Equal([]string{
		s.Path("history.jsonl"),
		s.Path("history.db"),
		s.Path("history.parquet"),
		s.Path("history.avro"),
		s.Path("flow.arrow"),
	}, r.OutputFiles())
}

func (s *ReporterSuite) TestPrometheusSinkUsesGivenRegistry() {
	cfg := s.config(testutil.Analysis(config.SmallDeformations, config.Static, 2, false))
	cfg.Metrics.Enabled = true
	cfg.Output.Zone = 3
	reg := prometheus.NewRegistry()
	r, err := New(Options{
		Config:     cfg,
		Logger:     testutil.TestLogger(s.T()),
		Registerer: reg,
		ScreenSink: sink.NewRecorder("screen"),
	})
	s.Require().NoError(err)

	state, _ := testutil.NewFakeRun(2, 0)
	_, err = r.ReportIteration(s.Context(), state, record.Iteration{})
	s.Require().NoError(err)

	n, err := promtest.GatherAndCount(reg, "feaout_history_value")
	s.Require().NoError(err)
	s.Equal(5, n)
	s.Require().NoError(r.Close())
}

func gate0(header, row bool) gate.Decision {
	return gate.Decision{EmitHeader: header, EmitRow: row, WriteHistory: true}
}

func TestDefaultFieldSelection(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Analysis = testutil.Analysis(config.SmallDeformations, config.Dynamic, 3, true)
	cfg.Output.HistoryFile = ""
	cfg.Output.VolumeFile = ""
	r, err := New(Options{Config: cfg, Logger: testutil.TestLogger(t), ScreenSink: sink.NewRecorder("screen")})
	require.NoError(t, err)
	defer r.Close()

	want := []field.ID{
		field.TimeIter, field.OuterIter, field.InnerIter,
		field.RMSDispX, field.RMSDispY, field.RMSDispZ,
		field.VonMisesSum, field.LoadIncrement, field.LoadRamp,
	}
	if diff := cmp.Diff(want, ids(r.ScreenFields())); diff != "" {
		t.Errorf("screen fields (-want +got):\n%s", diff)
	}

	want = []field.ID{
		field.TimeIter, field.OuterIter, field.InnerIter,
		field.RMSDispX, field.RMSDispY, field.RMSDispZ,
	}
	if diff := cmp.Diff(want, ids(r.HistoryFields())); diff != "" {
		t.Errorf("history fields (-want +got):\n%s", diff)
	}

	for _, d := range r.VolumeFields() {
		assert.Contains(t, field.DefaultVolumeGroups(), d.Group)
	}
}

func TestRequestedFields(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Output.HistoryFile = ""
	cfg.Output.VolumeFile = ""
	cfg.Output.ScreenFields = []string{"RMS_DISP_Y", "INNER_ITER"}
	cfg.Output.HistoryFields = []string{"VMS"}
	cfg.Output.ConvergenceField = "RMS_DISP_Y"
	r, err := New(Options{Config: cfg, ScreenSink: sink.NewRecorder("screen")})
	require.NoError(t, err)

	assert.Equal(t, []field.ID{field.RMSDispY, field.InnerIter}, ids(r.ScreenFields()))
	assert.Equal(t, []field.ID{field.VonMisesSum}, ids(r.HistoryFields()))

	_, _, err = r.ConvergenceValue()
	assert.Error(t, err, "nothing reported yet")
}

func TestUnregisteredRequestsAreConfigErrors(t *testing.T) {
	cases := map[string]func(*config.Config){
		"screen":      func(c *config.Config) { c.Output.ScreenFields = []string{"RMS_DISP_Z"} },
		"history":     func(c *config.Config) { c.Output.HistoryFields = []string{"BGS_DISP_X"} },
		"volume":      func(c *config.Config) { c.Output.VolumeFields = []string{"VELOCITY-X"} },
		"convergence": func(c *config.Config) { c.Output.ConvergenceField = "RMS_UTOL" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.NewDefault()
			mutate(cfg)
			_, err := New(Options{Config: cfg})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestInvalidAnalysisRejected(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Analysis.SpatialDim = 1
	_, err := New(Options{Config: cfg})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := config.NewDefault()
	cfg.Output.HistoryFile = ""
	cfg.Output.VolumeFile = ""
	screen := sink.NewRecorder("screen")
	hist := sink.NewRecorder("history")
	vol := sink.NewRecorder("volume")
	r, err := New(Options{
		Config:     cfg,
		ScreenSink: screen,
		History:    []sink.HistoryWriter{hist},
		Volume:     []sink.VolumeWriter{vol},
	})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, screen.Closed)
	assert.Equal(t, 1, hist.Closed)
	assert.Equal(t, 1, vol.Closed)
}

func TestLoaderErrorsAreCounted(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Analysis.SpatialDim = 3
	cfg.Output.HistoryFile = ""
	cfg.Output.VolumeFile = ""
	r, err := New(Options{Config: cfg, ScreenSink: sink.NewRecorder("screen")})
	require.NoError(t, err)
	defer r.Close()

	before := promtest.ToFloat64(metrics.ReportErrors.WithLabelValues(string(errors.ErrorTypeInvariant)))

	state, geo := testutil.NewFakeRun(2, 1)
	err = r.ReportVolume(context.Background(), state, geo, record.Iteration{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvariant))

	after := promtest.ToFloat64(metrics.ReportErrors.WithLabelValues(string(errors.ErrorTypeInvariant)))
	assert.Equal(t, before+1, after)
}

func TestScreenWritesToGivenWriter(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Output.HistoryFile = ""
	cfg.Output.VolumeFile = ""
	var out bytes.Buffer
	r, err := New(Options{Config: cfg, Screen: &out})
	require.NoError(t, err)

	state, _ := testutil.NewFakeRun(2, 0)
	state.RMS[0] = 0
	_, err = r.ReportIteration(context.Background(), state, record.Iteration{})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Contains(t, out.String(), "rms[DispX]")
	assert.Contains(t, out.String(), "-inf")

	snap, _ := r.LastSnapshot()
	v, err := snap.Get(field.RMSDispX)
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, -1))
}

func ids(ds []field.Descriptor) []field.ID {
	out := make([]field.ID, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
