package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/feaout/pkg/errors"
)

func TestAnalysisConfigValidate(t *testing.T) {
	valid := AnalysisConfig{GeometryMode: LargeDeformations, TimeMode: Dynamic, SpatialDim: 3, Multizone: true}
	require.NoError(t, valid.Validate())
	assert.True(t, valid.Nonlinear())
	assert.False(t, valid.Linear())
	assert.True(t, valid.Dynamic())
	assert.True(t, valid.ThreeD())

	tests := []struct {
		name string
		cfg  AnalysisConfig
	}{
		{"geometry", AnalysisConfig{GeometryMode: "", TimeMode: Static, SpatialDim: 2}},
		{"time", AnalysisConfig{GeometryMode: SmallDeformations, TimeMode: "HARMONIC", SpatialDim: 2}},
		{"dim", AnalysisConfig{GeometryMode: SmallDeformations, TimeMode: Static, SpatialDim: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Output.IsMaster())

	cfg.Output.WriteFrequency = -1
	assert.Error(t, cfg.Validate())

	cfg = NewDefault()
	cfg.Tracing.Exporter = "jaeger"
	assert.Error(t, cfg.Validate())

	cfg = NewDefault()
	cfg.Archive.URL = "ftp://results/run"
	assert.Error(t, cfg.Validate())
	cfg.Archive.URL = "s3://results/beam"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileSubstitutesEnv(t *testing.T) {
	t.Setenv("FEAOUT_TEST_HISTORY", "run42_history.csv")
	path := filepath.Join(t.TempDir(), "report.yaml")
	content := `
analysis:
  geometry_mode: LARGE_DEFORMATIONS
  time_mode: DYNAMIC
  spatial_dim: 3
  multizone: true
output:
  write_frequency: 2
  write_zone_convergence: true
  rank: 1
  history_file: ${FEAOUT_TEST_HISTORY}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, LargeDeformations, cfg.Analysis.GeometryMode)
	assert.Equal(t, 3, cfg.Analysis.SpatialDim)
	assert.Equal(t, 2, cfg.Output.WriteFrequency)
	assert.True(t, cfg.Output.WriteZoneConvergence)
	assert.Equal(t, "run42_history.csv", cfg.Output.HistoryFile)
	assert.False(t, cfg.Output.IsMaster())
	// untouched sections keep their defaults
	assert.Equal(t, "flow.arrow", cfg.Output.VolumeFile)
}

func TestSubstitutedValuesAreNotRescanned(t *testing.T) {
	t.Setenv("FEAOUT_TEST_SELF", "${FEAOUT_TEST_SELF}")
	t.Setenv("FEAOUT_TEST_ZONE", "2")

	done := make(chan string, 1)
	go func() {
		done <- substituteEnvVars("a: ${FEAOUT_TEST_SELF}\nb: ${FEAOUT_TEST_ZONE}\nc: ${FEAOUT_TEST_UNSET}\nd: ${open")
	}()

	select {
	case got := <-done:
		assert.Equal(t, "a: ${FEAOUT_TEST_SELF}\nb: 2\nc: \nd: ${open", got)
	case <-time.After(2 * time.Second):
		t.Fatal("substitution did not terminate")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := NewDefault()
	cfg.Analysis.Multizone = true
	cfg.Output.ScreenFields = []string{"INNER_ITER", "RMS_RES"}
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Analysis, loaded.Analysis)
	assert.Equal(t, cfg.Output, loaded.Output)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  spatial_dim: 4\n"), 0o600))
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
