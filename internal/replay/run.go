package replay

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/internal/report"
	"github.com/ajitpratap0/feaout/pkg/config"
)

// Options tunes a replay
type Options struct {
	// VolumeEvery reports a volume snapshot on every n-th frame that
	// carries nodes; zero or one reports all of them
	VolumeEvery int
	// SkipVolume ignores recorded nodes entirely
	SkipVolume bool
}

// Summary counts what a replay produced
type Summary struct {
	Frames  int `json:"frames"`
	Headers int `json:"headers"`
	Rows    int `json:"rows"`
	Volumes int `json:"volumes"`
}

// Replayer hands frames to a reporter
type Replayer struct {
	reporter *report.Reporter
	geometry Geometry
	opts     Options
	logger   *zap.Logger

	mu         sync.Mutex
	summary    Summary
	volumeSeen int
}

// NewReplayer creates a replayer for a reporter built from header's analysis
func NewReplayer(rep *report.Reporter, header Header, opts Options, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{
		reporter: rep,
		geometry: header.Geometry,
		opts:     opts,
		logger:   logger.With(zap.String("component", "replay")),
	}
}

// Handle reports one frame
func (r *Replayer) Handle(ctx context.Context, f *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.reporter.ReportIteration(ctx, f, f.Iteration)
	if err != nil {
		return err
	}
	r.summary.Frames++
	if d.EmitHeader {
		r.summary.Headers++
	}
	if d.EmitRow {
		r.summary.Rows++
	}

	if r.opts.SkipVolume || !f.HasVolume() {
		return nil
	}
	r.volumeSeen++
	if every := r.opts.VolumeEvery; every > 1 && (r.volumeSeen-1)%every != 0 {
		return nil
	}
	if err := r.reporter.ReportVolume(ctx, f, &r.geometry, f.Iteration); err != nil {
		return err
	}
	r.summary.Volumes++
	return nil
}

// Summary returns the counts so far
func (r *Replayer) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Drain handles every frame rd currently holds
func (r *Replayer) Drain(ctx context.Context, rd *Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := rd.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.Handle(ctx, f); err != nil {
			return err
		}
	}
}

// Run replays every frame of rd
func Run(ctx context.Context, rep *report.Reporter, rd *Reader, opts Options, logger *zap.Logger) (Summary, error) {
	r := NewReplayer(rep, rd.Header(), opts, logger)
	if err := r.Drain(ctx, rd); err != nil {
		return r.Summary(), err
	}
	sum := r.Summary()
	r.logger.Info("replay finished",
		zap.Int("frames", sum.Frames),
		zap.Int("volumes", sum.Volumes))
	return sum, nil
}

// Configure copies the trace's analysis into cfg. The catalogs have to
// match the run that produced the trace.
func Configure(cfg *config.Config, header Header) {
	cfg.Analysis = header.Analysis
}
