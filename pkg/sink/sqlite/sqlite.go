// Package sqlite stores history rows in a SQLite database, one table row per
// iteration and one column per history field. Repeated runs append to the
// same database and are told apart by run ID.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// HistoryWriter is the SQLite history sink
type HistoryWriter struct {
	path     string
	runID    string
	analysis config.AnalysisConfig
	logger   *zap.Logger

	db     *sql.DB
	insert *sql.Stmt
	fields []field.Descriptor
	closed bool
}

var _ sink.HistoryWriter = (*HistoryWriter)(nil)

// New creates a SQLite history writer for the database at path
func New(path, runID string, analysis config.AnalysisConfig, logger *zap.Logger) *HistoryWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryWriter{
		path:     path,
		runID:    runID,
		analysis: analysis,
		logger:   logger.With(zap.String("sink", "sqlite"), zap.String("path", path)),
	}
}

func (w *HistoryWriter) Name() string { return "sqlite" }

// Open creates the schema and registers the run
func (w *HistoryWriter) Open(ctx context.Context, fields []field.Descriptor) error {
	db, err := sql.Open("sqlite", w.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open database").
			WithDetail("path", w.path)
	}
	db.SetMaxOpenConns(1)
	w.db = db
	w.fields = append([]field.Descriptor(nil), fields...)

	if err := w.initSchema(ctx); err != nil {
		db.Close()
		w.db = nil
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO runs (run_id, geometry_mode, time_mode, spatial_dim, multizone, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.runID, string(w.analysis.GeometryMode), string(w.analysis.TimeMode),
		w.analysis.SpatialDim, w.analysis.Multizone, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to register run")
	}

	cols := []string{"run_id", "scope_time_iter", "scope_outer_iter", "scope_inner_iter"}
	for _, d := range fields {
		cols = append(cols, quote(string(d.ID)))
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	w.insert, err = db.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO history (%s) VALUES (%s)`, strings.Join(cols, ", "), marks))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to prepare insert")
	}

	w.logger.Info("history database opened", zap.String("run_id", w.runID))
	return nil
}

// initSchema creates the tables and adds columns for fields this run has
// that earlier runs did not
func (w *HistoryWriter) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		geometry_mode TEXT NOT NULL,
		time_mode TEXT NOT NULL,
		spatial_dim INTEGER NOT NULL,
		multizone BOOLEAN NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fields (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		field_id TEXT NOT NULL,
		label TEXT NOT NULL,
		field_group TEXT NOT NULL,
		format TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE TABLE IF NOT EXISTS history (
		-- scope_ prefixed so field columns such as INNER_ITER never collide
		run_id TEXT NOT NULL,
		scope_time_iter INTEGER NOT NULL,
		scope_outer_iter INTEGER NOT NULL,
		scope_inner_iter INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_run ON history(run_id);
	`
	if _, err := w.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to initialize schema")
	}

	existing, err := w.columns(ctx)
	if err != nil {
		return err
	}
	for i, d := range w.fields {
		if _, ok := existing[strings.ToLower(string(d.ID))]; !ok {
			stmt := fmt.Sprintf(`ALTER TABLE history ADD COLUMN %s REAL`, quote(string(d.ID)))
			if _, err := w.db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to add history column").
					WithDetail("field", string(d.ID))
			}
		}
		_, err := w.db.ExecContext(ctx,
			`INSERT INTO fields (run_id, position, field_id, label, field_group, format) VALUES (?, ?, ?, ?, ?, ?)`,
			w.runID, i, string(d.ID), d.Label, d.Group, d.Format.String())
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to register field")
		}
	}
	return nil
}

func (w *HistoryWriter) columns(ctx context.Context) (map[string]struct{}, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('history')`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to inspect history table")
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to inspect history table")
		}
		// column names compare case-insensitively
		cols[strings.ToLower(name)] = struct{}{}
	}
	return cols, rows.Err()
}

// WriteRow inserts one iteration
func (w *HistoryWriter) WriteRow(ctx context.Context, snap record.HistorySnapshot) error {
	if w.insert == nil {
		return errors.New(errors.ErrorTypeInternal, "history database not opened")
	}
	values, err := snap.Select(w.fields)
	if err != nil {
		return err
	}
	it := snap.Scope()
	args := make([]interface{}, 0, len(values)+4)
	args = append(args, w.runID, it.TimeIter, it.OuterIter, it.InnerIter)
	for _, v := range values {
		args = append(args, v)
	}
	if _, err := w.insert.ExecContext(ctx, args...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to insert history row")
	}
	return nil
}

// Close releases the statement and the database
func (w *HistoryWriter) Close() error {
	if w.closed || w.db == nil {
		return nil
	}
	w.closed = true
	if w.insert != nil {
		w.insert.Close()
	}
	if err := w.db.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close database")
	}
	return nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
