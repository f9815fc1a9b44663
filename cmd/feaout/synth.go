package main

import (
	"bufio"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/feaout/internal/replay"
	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/solver"
)

type synthOptions struct {
	catalog     catalogOptions
	increments  int
	newton      int
	points      int
	volumeEvery int
}

func newSynthCmd() *cobra.Command {
	opts := &synthOptions{}
	cmd := &cobra.Command{
		Use:   "synth TRACE",
		Short: "Write a synthetic solver trace",
		Long: `Write a trace of a cantilever-like run whose residuals decay quadratically
within each load increment. Useful for trying sinks without a solver.

The compression is taken from the extension of TRACE.

Example:
  feaout synth demo.jsonl.zst --geometry LARGE_DEFORMATIONS --increments 5 --points 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.catalog.geometry, "geometry", string(config.SmallDeformations), "Geometry mode (SMALL_DEFORMATIONS, LARGE_DEFORMATIONS)")
	cmd.Flags().StringVar(&opts.catalog.timeMode, "time", string(config.Static), "Time mode (STATIC, DYNAMIC)")
	cmd.Flags().IntVar(&opts.catalog.dim, "dim", 2, "Spatial dimension (2 or 3)")
	cmd.Flags().BoolVar(&opts.catalog.multizone, "multizone", false, "Multizone run")
	cmd.Flags().IntVar(&opts.increments, "increments", 10, "Load increments (time steps when dynamic)")
	cmd.Flags().IntVar(&opts.newton, "newton", 5, "Inner iterations per increment")
	cmd.Flags().IntVar(&opts.points, "points", 50, "Mesh points")
	cmd.Flags().IntVar(&opts.volumeEvery, "volume-every", 1, "Record nodes on the last inner iteration of every n-th increment")
	return cmd
}

func runSynth(path string, opts *synthOptions) error {
	analysis := config.AnalysisConfig{
		GeometryMode: config.GeometryMode(opts.catalog.geometry),
		TimeMode:     config.TimeMode(opts.catalog.timeMode),
		SpatialDim:   opts.catalog.dim,
		Multizone:    opts.catalog.multizone,
	}
	if opts.points < 1 || opts.increments < 1 || opts.newton < 1 {
		return errors.New(errors.ErrorTypeConfig, "points, increments and newton must be positive")
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create trace").WithDetail("path", path)
	}
	defer file.Close()
	comp, err := compression.NewWriter(file, compression.FromExtension(path), compression.Default)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(comp)

	beam := newBeam(analysis.SpatialDim, opts.points)
	rec, err := replay.NewRecorder(buf, analysis, beam)
	if err != nil {
		return err
	}

	every := opts.volumeEvery
	if every < 1 {
		every = 1
	}
	ext := 0
	for inc := 0; inc < opts.increments; inc++ {
		for inner := 0; inner < opts.newton; inner++ {
			beam.step(inc, inner, opts.increments)
			it := record.Iteration{InnerIter: inner, ExtIter: ext}
			if analysis.Dynamic() {
				it.TimeIter = inc
			}
			points := 0
			if inner == opts.newton-1 && inc%every == 0 {
				points = opts.points
			}
			if err := rec.Record(beam, it, points); err != nil {
				return err
			}
			ext++
		}
	}

	if err := buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush trace")
	}
	if err := comp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed trace")
	}
	return file.Close()
}

// beam is a cantilever along x, loaded at its tip, whose deflection grows
// with the load ramp
type beam struct {
	dim    int
	length float64
	coords [][3]float64
	ramp   float64
	incr   float64
	res    float64
	nodes  []beamNode
}

type beamNode struct {
	disp, vel, accel [3]float64
	stress           []float64
	mises            float64
}

var (
	_ solver.State    = (*beam)(nil)
	_ solver.Geometry = (*beam)(nil)
)

func newBeam(dim, points int) *beam {
	b := &beam{dim: dim, length: 10, nodes: make([]beamNode, points)}
	for p := 0; p < points; p++ {
		b.coords = append(b.coords, [3]float64{b.length * float64(p) / float64(max(points-1, 1)), 0, 0})
	}
	return b
}

func (b *beam) step(inc, inner, increments int) {
	b.incr = 1 / float64(increments)
	b.ramp = float64(inc+1) * b.incr
	// quadratic convergence from 1e-1
	b.res = math.Pow(10, -math.Pow(2, float64(inner)))
	for p := range b.nodes {
		x := b.coords[p][0] / b.length
		n := &b.nodes[p]
		prev := n.disp[1]
		n.disp[1] = -b.ramp * x * x * (3 - x) / 2
		n.vel[1] = n.disp[1] - prev
		n.accel[1] = -n.vel[1]
		sxx := b.ramp * 100 * (1 - x)
		n.stress = []float64{sxx, 0, sxx / 10}
		if b.dim == 3 {
			n.stress = append(n.stress, 0, 0, 0)
		}
		n.mises = math.Sqrt(sxx*sxx + 3*(sxx/10)*(sxx/10))
	}
}

func (b *beam) ResRMS(i int) float64 { return b.res * math.Pow(10, -float64(i)) }
func (b *beam) ResFEM(i int) float64 { return b.res * math.Pow(10, -float64(i)) }
func (b *beam) ResBGS(i int) float64 { return 10 * b.res }

func (b *beam) TotalVonMises() float64 {
	var sum float64
	for _, n := range b.nodes {
		sum += n.mises
	}
	return sum
}

func (b *beam) LoadIncrement() float64 { return b.incr }
func (b *beam) ForceCoeff() float64    { return b.ramp }
func (b *beam) Node(p int) solver.Node { return &b.nodes[p] }

func (b *beam) NDim() int              { return b.dim }
func (b *beam) NPoints() int           { return len(b.coords) }
func (b *beam) Coord(p, i int) float64 { return b.coords[p][i] }

func (n *beamNode) Solution(i int) float64     { return n.disp[i] }
func (n *beamNode) Velocity(i int) float64     { return n.vel[i] }
func (n *beamNode) Acceleration(i int) float64 { return n.accel[i] }
func (n *beamNode) Stress() []float64          { return n.stress }
func (n *beamNode) VonMises() float64          { return n.mises }
