package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/testutil"
)

var (
	linear    = testutil.Analysis(config.SmallDeformations, config.Static, 2, false)
	nonlinear = testutil.Analysis(config.LargeDeformations, config.Static, 2, false)
)

func TestNonlinearHeaderOnInnerRestart(t *testing.T) {
	freq := config.Frequency{WriteFrequency: 1}
	assert.True(t, ShouldEmitHeader(nonlinear, record.Iteration{InnerIter: 0, ExtIter: 7}, freq))
	assert.False(t, ShouldEmitHeader(nonlinear, record.Iteration{InnerIter: 5, ExtIter: 0}, freq))
}

func TestLinearHeaderCadence(t *testing.T) {
	freq := config.Frequency{WriteFrequency: 2}
	assert.True(t, ShouldEmitHeader(linear, record.Iteration{ExtIter: 80}, freq))
	assert.False(t, ShouldEmitHeader(linear, record.Iteration{ExtIter: 81}, freq))
	assert.True(t, ShouldEmitHeader(linear, record.Iteration{ExtIter: 0}, freq))
	assert.False(t, ShouldEmitHeader(linear, record.Iteration{ExtIter: 40}, freq))

	// inner iteration has no say in linear runs
	assert.False(t, ShouldEmitHeader(linear, record.Iteration{ExtIter: 1, InnerIter: 0}, freq))
}

func TestNonPositiveFrequencyMeansEveryInterval(t *testing.T) {
	for _, f := range []int{0, -3} {
		freq := config.Frequency{WriteFrequency: f}
		assert.True(t, ShouldEmitHeader(linear, record.Iteration{ExtIter: 40}, freq))
		assert.False(t, ShouldEmitHeader(linear, record.Iteration{ExtIter: 41}, freq))
	}
}

func TestMultizoneSuppressedByDefault(t *testing.T) {
	for _, cfg := range testutil.AllAnalyses() {
		if !cfg.Multizone {
			continue
		}
		freq := config.Frequency{WriteFrequency: 1, WriteZoneConvergence: false}
		assert.False(t, ShouldEmitHeader(cfg, record.Iteration{}, freq))
		assert.False(t, ShouldEmitRow(cfg, freq))

		freq.WriteZoneConvergence = true
		assert.True(t, ShouldEmitHeader(cfg, record.Iteration{}, freq))
		assert.True(t, ShouldEmitRow(cfg, freq))
	}
}

func TestRowsDefaultOn(t *testing.T) {
	assert.True(t, ShouldEmitRow(linear, config.Frequency{}))
	assert.True(t, ShouldEmitRow(nonlinear, config.Frequency{}))
}

func TestDecide(t *testing.T) {
	d := Decide(nonlinear, record.Iteration{InnerIter: 3}, config.Frequency{WriteFrequency: 1})
	assert.Equal(t, Decision{EmitHeader: false, EmitRow: true, WriteHistory: true}, d)
}

func drawIteration(t *rapid.T) record.Iteration {
	return record.Iteration{
		TimeIter:  rapid.IntRange(0, 1000).Draw(t, "time"),
		OuterIter: rapid.IntRange(0, 1000).Draw(t, "outer"),
		InnerIter: rapid.IntRange(0, 1000).Draw(t, "inner"),
		ExtIter:   rapid.IntRange(0, 100000).Draw(t, "ext"),
	}
}

func TestSingleZoneIgnoresZoneConvergenceFlag(t *testing.T) {
	single := []config.AnalysisConfig{}
	for _, cfg := range testutil.AllAnalyses() {
		if !cfg.Multizone {
			single = append(single, cfg)
		}
	}

	rapid.Check(t, func(t *rapid.T) {
		cfg := rapid.SampledFrom(single).Draw(t, "analysis")
		it := drawIteration(t)
		freq := config.Frequency{WriteFrequency: rapid.IntRange(-2, 50).Draw(t, "freq")}

		off := Decide(cfg, it, freq)
		freq.WriteZoneConvergence = true
		on := Decide(cfg, it, freq)
		if off != on {
			t.Fatalf("decision depends on zone convergence flag: %+v vs %+v", off, on)
		}
	})
}

func TestMultizoneOptOutSilencesEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := rapid.SampledFrom(testutil.AllAnalyses()).Draw(t, "analysis")
		cfg.Multizone = true
		it := drawIteration(t)
		freq := config.Frequency{WriteFrequency: rapid.IntRange(0, 50).Draw(t, "freq")}

		d := Decide(cfg, it, freq)
		if d.EmitHeader || d.EmitRow {
			t.Fatalf("multizone without opt-in emitted %+v", d)
		}
		if !d.WriteHistory {
			t.Fatalf("history file row suppressed")
		}
	})
}
