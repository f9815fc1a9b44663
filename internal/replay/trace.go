// Package replay feeds recorded solver traces through a reporter.
//
// A trace is a JSON lines file, optionally compressed (the compression is
// taken from the extension). The first line is the run header: the analysis
// snapshot and the mesh. Every following line is one iteration; an
// iteration that carries nodes also produces a volume snapshot.
//
//	{"type":"run","analysis":{...},"geometry":{"ndim":2,"coords":[[0,0],[1,0]]}}
//	{"type":"iteration","iteration":{"inner_iter":0},"rms":[1e-3,1e-4],...}
package replay

import (
	"math"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/solver"
)

// Line types
const (
	TypeRun       = "run"
	TypeIteration = "iteration"
)

// Header is the first line of a trace
type Header struct {
	Type     string                `json:"type"`
	Analysis config.AnalysisConfig `json:"analysis"`
	Geometry Geometry              `json:"geometry"`
}

// Geometry is a recorded mesh
type Geometry struct {
	Dim    int         `json:"ndim"`
	Coords [][]float64 `json:"coords"`
}

var _ solver.Geometry = Geometry{}

func (g Geometry) NDim() int    { return g.Dim }
func (g Geometry) NPoints() int { return len(g.Coords) }

func (g Geometry) Coord(p, i int) float64 { return component(g.Coords[p], i) }

// Frame is one recorded iteration
type Frame struct {
	Type      string           `json:"type"`
	Iteration record.Iteration `json:"iteration"`

	RMS       []float64 `json:"rms,omitempty"`
	FEM       []float64 `json:"fem,omitempty"`
	BGS       []float64 `json:"bgs,omitempty"`
	VonMises  float64   `json:"von_mises"`
	Increment float64   `json:"load_increment"`
	Ramp      float64   `json:"force_coeff"`
	Nodes     []Node    `json:"nodes,omitempty"`
}

var _ solver.State = (*Frame)(nil)

func (f *Frame) ResRMS(i int) float64   { return component(f.RMS, i) }
func (f *Frame) ResFEM(i int) float64   { return component(f.FEM, i) }
func (f *Frame) ResBGS(i int) float64   { return component(f.BGS, i) }
func (f *Frame) TotalVonMises() float64 { return f.VonMises }
func (f *Frame) LoadIncrement() float64 { return f.Increment }
func (f *Frame) ForceCoeff() float64    { return f.Ramp }
func (f *Frame) Node(p int) solver.Node { return &f.Nodes[p] }

// HasVolume reports whether the frame carries a volume snapshot
func (f *Frame) HasVolume() bool { return len(f.Nodes) > 0 }

// Node is one recorded point
type Node struct {
	Disp  []float64 `json:"solution"`
	Vel   []float64 `json:"velocity,omitempty"`
	Accel []float64 `json:"acceleration,omitempty"`
	Sigma []float64 `json:"stress"`
	Mises float64   `json:"von_mises"`
}

var _ solver.Node = (*Node)(nil)

func (n *Node) Solution(i int) float64     { return component(n.Disp, i) }
func (n *Node) Velocity(i int) float64     { return component(n.Vel, i) }
func (n *Node) Acceleration(i int) float64 { return component(n.Accel, i) }
func (n *Node) Stress() []float64          { return n.Sigma }
func (n *Node) VonMises() float64          { return n.Mises }

// component returns v[i], or NaN when the trace did not record it
func component(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return math.NaN()
}
