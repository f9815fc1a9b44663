package replay

import (
	"io"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/json"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/solver"
)

// Recorder writes a trace from live solver state
type Recorder struct {
	w        io.Writer
	analysis config.AnalysisConfig
}

// NewRecorder writes the run header for analysis and geo to w
func NewRecorder(w io.Writer, analysis config.AnalysisConfig, geo solver.Geometry) (*Recorder, error) {
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	h := Header{Type: TypeRun, Analysis: analysis, Geometry: CaptureGeometry(geo)}
	if err := json.WriteLine(w, h); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to write trace header")
	}
	return &Recorder{w: w, analysis: analysis}, nil
}

// Record appends one iteration. Nodes are captured when points > 0.
func (r *Recorder) Record(state solver.State, it record.Iteration, points int) error {
	f := Capture(r.analysis, state, it, points)
	if err := json.WriteLine(r.w, f); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write trace frame")
	}
	return nil
}

// CaptureGeometry copies the mesh coordinates
func CaptureGeometry(geo solver.Geometry) Geometry {
	g := Geometry{Dim: geo.NDim(), Coords: make([][]float64, geo.NPoints())}
	for p := range g.Coords {
		g.Coords[p] = make([]float64, g.Dim)
		for i := range g.Coords[p] {
			g.Coords[p][i] = geo.Coord(p, i)
		}
	}
	return g
}

// Capture copies everything the loader reads from state for this analysis
func Capture(analysis config.AnalysisConfig, state solver.State, it record.Iteration, points int) *Frame {
	n := field.ResidualComponents(analysis)
	f := &Frame{
		Type:      TypeIteration,
		Iteration: it,
		VonMises:  state.TotalVonMises(),
		Increment: state.LoadIncrement(),
		Ramp:      state.ForceCoeff(),
	}
	if analysis.Linear() {
		f.RMS = components(n, state.ResRMS)
	} else {
		f.FEM = components(n, state.ResFEM)
	}
	if analysis.Multizone {
		f.BGS = components(n, state.ResBGS)
	}

	dim := analysis.SpatialDim
	for p := 0; p < points; p++ {
		node := state.Node(p)
		nd := Node{
			Disp:  components(dim, node.Solution),
			Sigma: append([]float64(nil), node.Stress()...),
			Mises: node.VonMises(),
		}
		if analysis.Dynamic() {
			nd.Vel = components(dim, node.Velocity)
			nd.Accel = components(dim, node.Acceleration)
		}
		f.Nodes = append(f.Nodes, nd)
	}
	return f
}

func components(n int, get func(int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = get(i)
	}
	return out
}
