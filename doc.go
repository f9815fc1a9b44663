// Package feaout is the output subsystem of a structural finite element
// solver: it decides which quantities a run reports, pulls them from the
// solver every iteration, and writes them to the screen and to files.
//
// # Architecture
//
// The subsystem is built from four layers:
//
// 1. Field catalogs (pkg/field): an ordered, immutable registry of the
// history and volume fields an analysis produces. Registration order is
// column order.
//
// 2. Records (pkg/record): the latest value of every catalog field for one
// iteration or one mesh point, handed to sinks as immutable snapshots.
//
// 3. The loader (pkg/loader): copies solver state into records, storing
// residuals as log10 and checking that every registered field was written.
//
// 4. The write gate (pkg/gate): decides per iteration whether a screen
// header, a screen row and a history file row are produced.
//
// internal/report ties them together with the sinks in pkg/sink (screen,
// CSV, JSON lines, SQLite, Parquet, Avro, Arrow, Prometheus).
// internal/replay feeds recorded solver traces through a reporter.
//
// # Quick Start
//
//	cfg := config.NewDefault()
//	cfg.Analysis.GeometryMode = config.LargeDeformations
//	cfg.Analysis.SpatialDim = 3
//
//	rep, err := report.New(report.Options{Config: cfg, Logger: logger.Get()})
//	if err != nil {
//	    return err
//	}
//	defer rep.Close()
//
//	for inner := 0; !converged; inner++ {
//	    solve()
//	    if _, err := rep.ReportIteration(ctx, state, record.Iteration{InnerIter: inner}); err != nil {
//	        return err
//	    }
//	}
//	return rep.ReportVolume(ctx, state, mesh, record.Iteration{InnerIter: inner})
//
// # Command Line
//
//	feaout catalog --geometry LARGE_DEFORMATIONS --dim 3
//	feaout synth demo.jsonl.zst --increments 5
//	feaout replay demo.jsonl.zst --database history.db --summary
package feaout
