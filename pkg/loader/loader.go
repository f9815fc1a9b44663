// Package loader pulls values out of the solver and the mesh into records.
//
// The loader walks the same configuration the catalogs were built from, so
// every field it writes is registered and every registered field is written.
// After each load the record is checked for fields left unwritten; a gap means
// the catalog and the loader drifted apart and is reported as an invariant
// violation.
package loader

import (
	"math"

	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/pool"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/solver"
)

// Loader fills history and volume records from solver state
type Loader struct {
	analysis config.AnalysisConfig
	history  *field.Catalog
	volume   *field.Catalog
	points   *pool.Pool[*record.Volume]
	logger   *zap.Logger
}

// New creates a loader for catalogs built from analysis
func New(analysis config.AnalysisConfig, history, volume *field.Catalog, logger *zap.Logger) (*Loader, error) {
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	if history == nil || history.Namespace() != field.History {
		return nil, errors.New(errors.ErrorTypeInvariant, "loader needs a history catalog")
	}
	points, err := record.NewVolumePool(volume)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		analysis: analysis,
		history:  history,
		volume:   volume,
		points:   points,
		logger:   logger.With(zap.String("component", "loader")),
	}, nil
}

// LoadHistory populates rec for iteration it.
//
// Residuals are stored as log10 of the upstream value. A zero residual gives
// -Inf and a negative one NaN; both go through to the sinks unchanged.
func (l *Loader) LoadHistory(state solver.State, it record.Iteration, rec *record.History) error {
	if rec.Catalog() != l.history {
		return errors.New(errors.ErrorTypeInvariant, "history record built from a different catalog")
	}
	rec.Reset(it)

	w := writer[record.Iteration]{rec: rec}
	w.set(field.TimeIter, float64(it.TimeIter))
	w.set(field.OuterIter, float64(it.OuterIter))
	w.set(field.InnerIter, float64(it.InnerIter))

	n := field.ResidualComponents(l.analysis)
	if l.analysis.Linear() {
		for i := 0; i < n; i++ {
			w.set(field.RMSDisp[i], math.Log10(state.ResRMS(i)))
		}
	} else {
		for i := 0; i < n; i++ {
			w.set(field.RMSTol[i], math.Log10(state.ResFEM(i)))
		}
	}

	if l.analysis.Multizone {
		for i := 0; i < n; i++ {
			w.set(field.BGSDisp[i], math.Log10(state.ResBGS(i)))
		}
	}

	w.set(field.VonMisesSum, state.TotalVonMises())
	w.set(field.LoadIncrement, state.LoadIncrement())
	w.set(field.LoadRamp, state.ForceCoeff())

	if w.err != nil {
		return w.err
	}
	if err := checkComplete(rec.Missing(), field.History); err != nil {
		return err
	}

	l.logger.Debug("history loaded",
		zap.Int("time_iter", it.TimeIter),
		zap.Int("outer_iter", it.OuterIter),
		zap.Int("inner_iter", it.InnerIter))
	return nil
}

// LoadVolumePoint populates rec for point p
func (l *Loader) LoadVolumePoint(state solver.State, geo solver.Geometry, p int, rec *record.Volume) error {
	if rec.Catalog() != l.volume {
		return errors.New(errors.ErrorTypeInvariant, "volume record built from a different catalog")
	}
	if err := l.checkGeometry(geo); err != nil {
		return err
	}
	if p < 0 || p >= geo.NPoints() {
		return errors.Newf(errors.ErrorTypeData, "point %d out of range", p).
			WithDetail("points", geo.NPoints())
	}
	rec.Reset(record.Point{Index: p})

	nDim := l.analysis.SpatialDim
	node := state.Node(p)

	w := writer[record.Point]{rec: rec}
	for i := 0; i < nDim; i++ {
		w.set(field.Coord[i], geo.Coord(p, i))
	}
	for i := 0; i < nDim; i++ {
		w.set(field.Displacement[i], node.Solution(i))
	}

	if l.analysis.Dynamic() {
		for i := 0; i < nDim; i++ {
			w.set(field.Velocity[i], node.Velocity(i))
		}
		for i := 0; i < nDim; i++ {
			w.set(field.Acceleration[i], node.Acceleration(i))
		}
	}

	stress := node.Stress()
	n := field.StressComponents(l.analysis)
	if len(stress) < n {
		return errors.Newf(errors.ErrorTypeData, "stress vector at point %d has %d terms, need %d", p, len(stress), n)
	}
	for i := 0; i < n; i++ {
		w.set(field.Stress[i], stress[i])
	}
	w.set(field.VonMisesStress, node.VonMises())

	if w.err != nil {
		return w.err
	}
	return checkComplete(rec.Missing(), field.Volume)
}

// LoadVolume loads every mesh point in order and hands each snapshot to emit.
// Records are recycled between points; emit must not keep anything but the
// snapshot.
func (l *Loader) LoadVolume(state solver.State, geo solver.Geometry, emit func(record.VolumeSnapshot) error) error {
	if err := l.checkGeometry(geo); err != nil {
		return err
	}
	rec := l.points.Get()
	defer l.points.Put(rec)

	for p := 0; p < geo.NPoints(); p++ {
		if err := l.LoadVolumePoint(state, geo, p, rec); err != nil {
			return err
		}
		if err := emit(rec.Snapshot()); err != nil {
			return err
		}
	}

	l.logger.Debug("volume loaded", zap.Int("points", geo.NPoints()))
	return nil
}

// PoolStats exposes the volume record pool counters
func (l *Loader) PoolStats() (allocated, inUse, hits, misses int64) {
	return l.points.Stats()
}

func (l *Loader) checkGeometry(geo solver.Geometry) error {
	if geo.NDim() != l.analysis.SpatialDim {
		return errors.New(errors.ErrorTypeInvariant, "geometry dimension differs from catalog dimension").
			WithDetail("geometry_dim", geo.NDim()).
			WithDetail("catalog_dim", l.analysis.SpatialDim)
	}
	return nil
}

func checkComplete(missing []field.ID, ns field.Namespace) error {
	if len(missing) == 0 {
		return nil
	}
	return errors.New(errors.ErrorTypeInvariant, "catalog field left unwritten by loader").
		WithDetail("namespace", string(ns)).
		WithDetail("fields", field.IDStrings(missing))
}

// writer keeps the first Set failure so the load sequence reads top to bottom
type writer[S record.Scope] struct {
	rec *record.Record[S]
	err error
}

func (w *writer[S]) set(id field.ID, v float64) {
	if w.err != nil {
		return
	}
	if err := w.rec.Set(id, v); err != nil {
		w.err = errors.Wrap(err, errors.ErrorTypeInvariant, "loader wrote a field the catalog does not declare")
	}
}
