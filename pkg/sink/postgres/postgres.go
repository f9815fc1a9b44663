// Package postgres stores history rows in PostgreSQL with the same layout as
// the SQLite sink: a runs table, a fields table and a history table with one
// DOUBLE PRECISION column per field. Non-finite residuals are stored as the
// PostgreSQL values -Infinity and NaN.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
)

// HistoryWriter is the PostgreSQL history sink
type HistoryWriter struct {
	dsn      string
	runID    string
	analysis config.AnalysisConfig
	logger   *zap.Logger

	pool   *pgxpool.Pool
	insert string
	fields []field.Descriptor
	closed bool
}

var _ sink.HistoryWriter = (*HistoryWriter)(nil)

// New creates a writer for the database at dsn
func New(dsn, runID string, analysis config.AnalysisConfig, logger *zap.Logger) *HistoryWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryWriter{
		dsn:      dsn,
		runID:    runID,
		analysis: analysis,
		logger:   logger.With(zap.String("sink", "postgres")),
	}
}

func (w *HistoryWriter) Name() string { return "postgres" }

// Open connects, migrates the schema and registers the run
func (w *HistoryWriter) Open(ctx context.Context, fields []field.Descriptor) error {
	cfg, err := pgxpool.ParseConfig(w.dsn)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres connection string")
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to connect to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to connect to postgres")
	}
	w.pool = pool
	w.fields = append([]field.Descriptor(nil), fields...)

	if err := w.migrate(ctx); err != nil {
		return err
	}
	w.insert = InsertSQL(w.fields)
	w.logger.Info("history database opened",
		zap.String("run_id", w.runID),
		zap.String("host", cfg.ConnConfig.Host))
	return nil
}

func (w *HistoryWriter) migrate(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to begin migration")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range SchemaSQL(w.fields) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to initialize schema").
				WithDetail("statement", stmt)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (run_id, geometry_mode, time_mode, spatial_dim, multizone, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		w.runID, string(w.analysis.GeometryMode), string(w.analysis.TimeMode),
		w.analysis.SpatialDim, w.analysis.Multizone, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to register run")
	}

	batch := &pgx.Batch{}
	for i, d := range w.fields {
		batch.Queue(
			`INSERT INTO fields (run_id, position, field_id, label, field_group, format) VALUES ($1, $2, $3, $4, $5, $6)`,
			w.runID, i, string(d.ID), d.Label, d.Group, d.Format.String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to register fields")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to commit migration")
	}
	return nil
}

// SchemaSQL returns the statements creating the tables and the columns for
// fields
func SchemaSQL(fields []field.Descriptor) []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			geometry_mode TEXT NOT NULL,
			time_mode TEXT NOT NULL,
			spatial_dim INTEGER NOT NULL,
			multizone BOOLEAN NOT NULL,
			started_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fields (
			run_id TEXT NOT NULL REFERENCES runs (run_id),
			position INTEGER NOT NULL,
			field_id TEXT NOT NULL,
			label TEXT NOT NULL,
			field_group TEXT NOT NULL,
			format TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			run_id TEXT NOT NULL REFERENCES runs (run_id),
			scope_time_iter INTEGER NOT NULL,
			scope_outer_iter INTEGER NOT NULL,
			scope_inner_iter INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_run ON history (run_id)`,
	}
	for _, d := range fields {
		stmts = append(stmts, fmt.Sprintf(`ALTER TABLE history ADD COLUMN IF NOT EXISTS %s DOUBLE PRECISION`,
			pgx.Identifier{string(d.ID)}.Sanitize()))
	}
	return stmts
}

// InsertSQL returns the parameterised history insert for fields
func InsertSQL(fields []field.Descriptor) string {
	cols := []string{"run_id", "scope_time_iter", "scope_outer_iter", "scope_inner_iter"}
	for _, d := range fields {
		cols = append(cols, pgx.Identifier{string(d.ID)}.Sanitize())
	}
	params := make([]string, len(cols))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(`INSERT INTO history (%s) VALUES (%s)`, strings.Join(cols, ", "), strings.Join(params, ", "))
}

// WriteRow inserts one iteration
func (w *HistoryWriter) WriteRow(ctx context.Context, snap record.HistorySnapshot) error {
	if w.pool == nil || w.closed {
		return errors.New(errors.ErrorTypeInternal, "postgres history not opened")
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
	if _, err := w.pool.Exec(ctx, w.insert, args...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to insert history row")
	}
	return nil
}

// Close releases the connection pool
func (w *HistoryWriter) Close() error {
	if w.closed || w.pool == nil {
		return nil
	}
	w.closed = true
	w.pool.Close()
	return nil
}
