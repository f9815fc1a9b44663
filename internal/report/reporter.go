// Package report drives one zone's reporting: it owns the catalogs, the
// history record and the sinks, and runs the load, gate and emit steps for
// every solver iteration and every volume snapshot.
//
// Every process builds the same catalogs and loads the same records. Only
// the master rank opens sinks and writes; the others compute and discard.
package report

import (
	"context"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/gate"
	"github.com/ajitpratap0/feaout/pkg/loader"
	"github.com/ajitpratap0/feaout/pkg/metrics"
	"github.com/ajitpratap0/feaout/pkg/observability"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
	"github.com/ajitpratap0/feaout/pkg/solver"
)

// Options configures a Reporter
type Options struct {
	Config *config.Config
	Logger *zap.Logger
	// RunID tags database rows and log lines
	RunID string
	// Screen receives the console table; stdout when nil
	Screen io.Writer
	// ScreenSink replaces the console table entirely
	ScreenSink sink.HeaderWriter
	// Registerer receives the live history gauges when metrics are enabled;
	// the default registerer when nil
	Registerer prometheus.Registerer

	// Extra sinks, appended to the ones built from Config
	History []sink.HistoryWriter
	Volume  []sink.VolumeWriter
}

// Reporter reports one zone
type Reporter struct {
	cfg      *config.Config
	analysis config.AnalysisConfig
	logger   *zap.Logger
	zone     string
	master   bool

	historyCatalog *field.Catalog
	volumeCatalog  *field.Catalog
	loader         *loader.Loader
	history        *record.History

	screenFields  []field.Descriptor
	historyFields []field.Descriptor
	volumeFields  []field.Descriptor
	convergence   field.ID

	screen      sink.HeaderWriter
	historySink []sink.HistoryWriter
	volumeSink  []sink.VolumeWriter
	files       []string

	openOnce  sync.Once
	openErr   error
	closeOnce sync.Once
	closeErr  error

	last    record.HistorySnapshot
	hasLast bool
}

// New builds the catalogs, the loader and, on the master rank, the sinks
func New(opts Options) (*Reporter, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(
		zap.String("run_id", opts.RunID),
		zap.Int("zone", cfg.Output.Zone),
		zap.Int("rank", cfg.Output.Rank),
	)

	hist, err := field.BuildHistoryCatalog(cfg.Analysis)
	if err != nil {
		return nil, err
	}
	vol, err := field.BuildVolumeCatalog(cfg.Analysis)
	if err != nil {
		return nil, err
	}
	ld, err := loader.New(cfg.Analysis, hist, vol, log)
	if err != nil {
		return nil, err
	}
	rec, err := record.NewHistory(hist)
	if err != nil {
		return nil, err
	}

	r := &Reporter{
		cfg:            cfg,
		analysis:       cfg.Analysis,
		logger:         log.With(zap.String("component", "reporter")),
		zone:           strconv.Itoa(cfg.Output.Zone),
		master:         cfg.Output.IsMaster(),
		historyCatalog: hist,
		volumeCatalog:  vol,
		loader:         ld,
		history:        rec,
	}

	if err := r.selectFields(); err != nil {
		return nil, err
	}

	if r.master {
		if err := r.buildSinks(opts); err != nil {
			return nil, err
		}
	}

	r.logger.Info("reporter created",
		zap.Int("history_fields", hist.Len()),
		zap.Int("volume_fields", vol.Len()),
		zap.Bool("master", r.master),
		zap.String("convergence_field", string(r.convergence)))
	return r, nil
}

// selectFields resolves the requested or default columns and the monitored
// convergence field
func (r *Reporter) selectFields() error {
	var err error
	out := r.cfg.Output

	screenNames := out.ScreenFields
	if len(screenNames) == 0 {
		screenNames = field.IDStrings(field.DefaultScreenFields(r.analysis, r.historyCatalog))
	}
	if r.screenFields, err = field.Select(r.historyCatalog, screenNames); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid screen fields")
	}

	if len(out.HistoryFields) == 0 {
		r.historyFields, err = field.SelectOrdered(r.historyCatalog, field.DefaultHistoryGroups())
	} else {
		r.historyFields, err = field.Select(r.historyCatalog, out.HistoryFields)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid history fields")
	}

	if len(out.VolumeFields) == 0 {
		r.volumeFields, err = field.SelectOrdered(r.volumeCatalog, field.DefaultVolumeGroups())
	} else {
		r.volumeFields, err = field.Select(r.volumeCatalog, out.VolumeFields)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid volume fields")
	}

	r.convergence, err = convergenceField(r.analysis, r.historyCatalog, out.ConvergenceField)
	return err
}

// convergenceField resolves the monitored field. A named field must exist.
// The default RMS_DISP_X is only registered for linear runs; nonlinear runs
// fall back to the first residual of their own variant.
func convergenceField(analysis config.AnalysisConfig, catalog *field.Catalog, requested string) (field.ID, error) {
	if requested != "" {
		id := field.ID(requested)
		if !catalog.Has(id) {
			return "", errors.Wrap(catalog.NotRegistered(id), errors.ErrorTypeConfig, "invalid convergence field")
		}
		return id, nil
	}
	if catalog.Has(field.DefaultConvergenceField) {
		return field.DefaultConvergenceField, nil
	}
	if analysis.Nonlinear() {
		return field.RMSUTol, nil
	}
	return field.RMSDispX, nil
}

// HistoryCatalog returns the history catalog
func (r *Reporter) HistoryCatalog() *field.Catalog { return r.historyCatalog }

// VolumeCatalog returns the volume catalog
func (r *Reporter) VolumeCatalog() *field.Catalog { return r.volumeCatalog }

// ScreenFields returns the screen columns
func (r *Reporter) ScreenFields() []field.Descriptor {
	return append([]field.Descriptor(nil), r.screenFields...)
}

// HistoryFields returns the columns written to the history sinks
func (r *Reporter) HistoryFields() []field.Descriptor {
	return append([]field.Descriptor(nil), r.historyFields...)
}

// VolumeFields returns the columns written to the volume sinks
func (r *Reporter) VolumeFields() []field.Descriptor {
	return append([]field.Descriptor(nil), r.volumeFields...)
}

// IsMaster reports whether this reporter writes
func (r *Reporter) IsMaster() bool { return r.master }

// Open opens every sink. It runs once; later calls return the first result.
// ReportIteration and ReportVolume open on first use.
func (r *Reporter) Open(ctx context.Context) error {
	r.openOnce.Do(func() {
		if !r.master {
			return
		}
		if r.screen != nil {
			if err := r.screen.Open(ctx, r.screenFields); err != nil {
				r.openErr = err
				return
			}
		}
		for _, s := range r.historySink {
			if err := s.Open(ctx, r.historyFields); err != nil {
				r.openErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to open history sink").
					WithDetail("sink", s.Name())
				return
			}
		}
		for _, s := range r.volumeSink {
			if err := s.Open(ctx, r.volumeFields); err != nil {
				r.openErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to open volume sink").
					WithDetail("sink", s.Name())
				return
			}
		}
	})
	return r.openErr
}

// ReportIteration loads the history record, asks the gate and hands the
// snapshot to the sinks it allows. The decision is returned on every rank.
func (r *Reporter) ReportIteration(ctx context.Context, state solver.State, it record.Iteration) (decision gate.Decision, err error) {
	ctx, span := observability.StartSpan(ctx, "report.iteration",
		attribute.String("zone", r.zone),
		attribute.Int("time_iter", it.TimeIter),
		attribute.Int("outer_iter", it.OuterIter),
		attribute.Int("inner_iter", it.InnerIter))
	defer func() {
		if err != nil {
			metrics.ReportErrors.WithLabelValues(errorType(err)).Inc()
		}
		observability.EndSpan(span, err)
	}()

	if err := r.loader.LoadHistory(state, it, r.history); err != nil {
		return gate.Decision{}, err
	}
	snap := r.history.Snapshot()
	r.last, r.hasLast = snap, true
	metrics.IterationsReported.WithLabelValues(r.zone).Inc()
	if v, err := snap.Get(r.convergence); err == nil {
		metrics.ConvergenceValue.WithLabelValues(r.zone, string(r.convergence)).Set(v)
	}

	decision = gate.Decide(r.analysis, it, r.cfg.Output.Frequency)
	span.SetAttributes(
		attribute.Bool("emit_header", decision.EmitHeader),
		attribute.Bool("emit_row", decision.EmitRow))

	if !r.master {
		return decision, nil
	}
	if err := r.Open(ctx); err != nil {
		return decision, err
	}

	if r.screen != nil {
		if decision.EmitHeader {
			if err := r.screen.WriteHeader(ctx); err != nil {
				return decision, err
			}
			metrics.HeadersEmitted.WithLabelValues(r.zone).Inc()
		}
		if decision.EmitRow {
			if err := r.writeRow(ctx, r.screen, snap); err != nil {
				return decision, err
			}
		} else {
			metrics.RowsSuppressed.WithLabelValues(r.zone).Inc()
		}
	}

	if decision.WriteHistory {
		for _, s := range r.historySink {
			if err := r.writeRow(ctx, s, snap); err != nil {
				return decision, err
			}
		}
	}
	return decision, nil
}

func (r *Reporter) writeRow(ctx context.Context, s sink.HistoryWriter, snap record.HistorySnapshot) error {
	timer := metrics.NewTimer(s.Name())
	if err := s.WriteRow(ctx, snap); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "history sink failed").
			WithDetail("sink", s.Name())
	}
	metrics.SinkWriteLatency.WithLabelValues(s.Name()).Observe(timer.Stop().Seconds())
	metrics.RowsWritten.WithLabelValues(s.Name(), r.zone).Inc()
	return nil
}

// ReportVolume loads every mesh point and writes one snapshot to each volume
// sink
func (r *Reporter) ReportVolume(ctx context.Context, state solver.State, geo solver.Geometry, it record.Iteration) (err error) {
	ctx, span := observability.StartSpan(ctx, "report.volume",
		attribute.String("zone", r.zone),
		attribute.Int("points", geo.NPoints()))
	defer func() {
		if err != nil {
			metrics.ReportErrors.WithLabelValues(errorType(err)).Inc()
		}
		observability.EndSpan(span, err)
	}()

	sinks := r.volumeSink
	if !r.master {
		sinks = nil
	} else if err := r.Open(ctx); err != nil {
		return err
	}

	for i, s := range sinks {
		if err := s.BeginSnapshot(ctx, it, geo.NPoints()); err != nil {
			r.abortSnapshot(ctx, sinks[:i])
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to begin volume snapshot").
				WithDetail("sink", s.Name())
		}
	}

	err = r.loader.LoadVolume(state, geo, func(snap record.VolumeSnapshot) error {
		for _, s := range sinks {
			if err := s.WritePoint(ctx, snap); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "volume sink failed").
					WithDetail("sink", s.Name())
			}
		}
		return nil
	})
	if err != nil {
		r.abortSnapshot(ctx, sinks)
		return err
	}

	for _, s := range sinks {
		if err := s.EndSnapshot(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to end volume snapshot").
				WithDetail("sink", s.Name())
		}
	}

	if r.master {
		metrics.VolumePoints.WithLabelValues(r.zone).Add(float64(geo.NPoints()))
	}
	allocated, inUse, _, _ := r.loader.PoolStats()
	metrics.PooledRecords.WithLabelValues("allocated").Set(float64(allocated))
	metrics.PooledRecords.WithLabelValues("in_use").Set(float64(inUse))

	r.logger.Debug("volume reported", zap.Int("points", geo.NPoints()), zap.Int("inner_iter", it.InnerIter))
	return nil
}

// abortSnapshot closes out a snapshot begun on sinks. The caller already has
// the error that caused it, so failures here are only logged.
func (r *Reporter) abortSnapshot(ctx context.Context, sinks []sink.VolumeWriter) {
	for _, s := range sinks {
		var err error
		if a, ok := s.(sink.SnapshotAborter); ok {
			err = a.AbortSnapshot(ctx)
		} else {
			err = s.EndSnapshot(ctx)
		}
		if err != nil {
			r.logger.Warn("failed to discard volume snapshot", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}

// ConvergenceValue returns the monitored field of the latest history row
func (r *Reporter) ConvergenceValue() (field.ID, float64, error) {
	if !r.hasLast {
		return r.convergence, 0, errors.New(errors.ErrorTypeInternal, "no iteration reported yet")
	}
	v, err := r.last.Get(r.convergence)
	return r.convergence, v, err
}

// LastSnapshot returns the latest history snapshot
func (r *Reporter) LastSnapshot() (record.HistorySnapshot, bool) {
	return r.last, r.hasLast
}

// OutputFiles lists the files the configured sinks write, in the order the
// sinks were built. Non-master reporters write none.
func (r *Reporter) OutputFiles() []string {
	return append([]string(nil), r.files...)
}

// Close closes every sink exactly once. Non-master reporters own nothing.
func (r *Reporter) Close() error {
	r.closeOnce.Do(func() {
		if !r.master {
			return
		}
		var errs []error
		if r.screen != nil {
			errs = append(errs, r.screen.Close())
		}
		for _, s := range r.historySink {
			errs = append(errs, s.Close())
		}
		for _, s := range r.volumeSink {
			errs = append(errs, s.Close())
		}
		r.closeErr = errors.Join(errs...)
		r.logger.Info("reporter closed")
	})
	return r.closeErr
}

func errorType(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	return string(errors.ErrorTypeInternal)
}

func stdoutIfNil(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
