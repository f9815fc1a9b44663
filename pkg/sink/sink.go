// Package sink defines the interfaces the reporter hands snapshots to, and
// the cell formatting shared by the concrete sinks in its subpackages.
//
// A sink only ever sees immutable snapshots and the ordered field list it
// was opened with; it never reaches back into the solver or the records.
package sink

import (
	"context"

	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
)

// HistoryWriter receives history rows
type HistoryWriter interface {
	// Name identifies the sink in logs and metrics
	Name() string
	// Open is called once, before any row, with the columns to write
	Open(ctx context.Context, fields []field.Descriptor) error
	// WriteRow writes one iteration
	WriteRow(ctx context.Context, snap record.HistorySnapshot) error
	// Close flushes and releases the sink. It is called exactly once.
	Close() error
}

// HeaderWriter is a history writer with a repeatable header, i.e. the screen
type HeaderWriter interface {
	HistoryWriter
	WriteHeader(ctx context.Context) error
}

// VolumeWriter receives per-point snapshots, grouped by solver snapshot
type VolumeWriter interface {
	Name() string
	Open(ctx context.Context, fields []field.Descriptor) error
	// BeginSnapshot starts a dataset of points points taken at it
	BeginSnapshot(ctx context.Context, it record.Iteration, points int) error
	WritePoint(ctx context.Context, snap record.VolumeSnapshot) error
	EndSnapshot(ctx context.Context) error
	Close() error
}

// SnapshotAborter is a volume writer that can drop a snapshot begun but not
// ended. Writers without it get EndSnapshot instead.
type SnapshotAborter interface {
	AbortSnapshot(ctx context.Context) error
}
