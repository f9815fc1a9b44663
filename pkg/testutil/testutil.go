// Package testutil provides testing utilities for feaout
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/solver"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// Analysis returns an analysis config; a convenience for table tests
func Analysis(geom config.GeometryMode, tm config.TimeMode, dim int, multizone bool) config.AnalysisConfig {
	return config.AnalysisConfig{
		GeometryMode: geom,
		TimeMode:     tm,
		SpatialDim:   dim,
		Multizone:    multizone,
	}
}

// AllAnalyses enumerates every valid analysis configuration
func AllAnalyses() []config.AnalysisConfig {
	var out []config.AnalysisConfig
	for _, geom := range []config.GeometryMode{config.SmallDeformations, config.LargeDeformations} {
		for _, tm := range []config.TimeMode{config.Static, config.Dynamic} {
			for _, dim := range []int{2, 3} {
				for _, mz := range []bool{false, true} {
					out = append(out, Analysis(geom, tm, dim, mz))
				}
			}
		}
	}
	return out
}

// FakeSolver is an in-memory solver.State
type FakeSolver struct {
	RMS       [3]float64
	FEM       [3]float64
	BGS       [3]float64
	VonMises  float64
	Increment float64
	Ramp      float64
	Nodes     []FakeNode
}

var _ solver.State = (*FakeSolver)(nil)

func (s *FakeSolver) ResRMS(i int) float64   { return s.RMS[i] }
func (s *FakeSolver) ResFEM(i int) float64   { return s.FEM[i] }
func (s *FakeSolver) ResBGS(i int) float64   { return s.BGS[i] }
func (s *FakeSolver) TotalVonMises() float64 { return s.VonMises }
func (s *FakeSolver) LoadIncrement() float64 { return s.Increment }
func (s *FakeSolver) ForceCoeff() float64    { return s.Ramp }
func (s *FakeSolver) Node(p int) solver.Node { return &s.Nodes[p] }

// FakeNode is an in-memory solver.Node
type FakeNode struct {
	Disp  [3]float64
	Vel   [3]float64
	Accel [3]float64
	Sigma []float64
	Mises float64
}

var _ solver.Node = (*FakeNode)(nil)

func (n *FakeNode) Solution(i int) float64     { return n.Disp[i] }
func (n *FakeNode) Velocity(i int) float64     { return n.Vel[i] }
func (n *FakeNode) Acceleration(i int) float64 { return n.Accel[i] }
func (n *FakeNode) Stress() []float64          { return n.Sigma }
func (n *FakeNode) VonMises() float64          { return n.Mises }

// FakeGeometry is an in-memory solver.Geometry
type FakeGeometry struct {
	Dim    int
	Coords [][3]float64
}

var _ solver.Geometry = (*FakeGeometry)(nil)

func (g *FakeGeometry) NDim() int              { return g.Dim }
func (g *FakeGeometry) NPoints() int           { return len(g.Coords) }
func (g *FakeGeometry) Coord(p, i int) float64 { return g.Coords[p][i] }

// NewFakeRun builds a solver with points nodes whose values are derived from
// the point index, and a matching geometry of dimension dim.
func NewFakeRun(dim, points int) (*FakeSolver, *FakeGeometry) {
	s := &FakeSolver{
		RMS:       [3]float64{1e-3, 1e-4, 1e-5},
		FEM:       [3]float64{1e-6, 1e-7, 1e-8},
		BGS:       [3]float64{1e-2, 1e-3, 1e-4},
		VonMises:  2.5e5,
		Increment: 0.5,
		Ramp:      1,
	}
	g := &FakeGeometry{Dim: dim}
	for p := 0; p < points; p++ {
		f := float64(p)
		g.Coords = append(g.Coords, [3]float64{f, 2 * f, 3 * f})
		sigma := []float64{10 + f, 20 + f, 30 + f}
		if dim == 3 {
			sigma = append(sigma, 40+f, 50+f, 60+f)
		}
		s.Nodes = append(s.Nodes, FakeNode{
			Disp:  [3]float64{0.1 * f, 0.2 * f, 0.3 * f},
			Vel:   [3]float64{1 + f, 2 + f, 3 + f},
			Accel: [3]float64{-1 - f, -2 - f, -3 - f},
			Sigma: sigma,
			Mises: 100 * f,
		})
	}
	return s, g
}
