package sink

import (
	"context"
	"sync"

	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/record"
)

// Recorder keeps everything it is handed in memory. It implements every
// sink interface and is used by tests and by the replay dry run.
type Recorder struct {
	mu sync.Mutex

	Label     string
	Fields    []field.Descriptor
	Headers   int
	Rows      []record.HistorySnapshot
	Snapshots []record.Iteration
	Points    []record.VolumeSnapshot
	Ended     int
	Aborted   int
	Closed    int
}

var (
	_ HeaderWriter = (*Recorder)(nil)
	_ VolumeWriter    = (*Recorder)(nil)
	_ SnapshotAborter = (*Recorder)(nil)
)

// NewRecorder creates a recorder reporting name as its sink name
func NewRecorder(name string) *Recorder {
	return &Recorder{Label: name}
}

func (r *Recorder) Name() string { return r.Label }

func (r *Recorder) Open(_ context.Context, fields []field.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fields = append([]field.Descriptor(nil), fields...)
	return nil
}

func (r *Recorder) WriteHeader(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Headers++
	return nil
}

func (r *Recorder) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rows = append(r.Rows, snap)
	return nil
}

func (r *Recorder) BeginSnapshot(_ context.Context, it record.Iteration, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Snapshots = append(r.Snapshots, it)
	return nil
}

func (r *Recorder) WritePoint(_ context.Context, snap record.VolumeSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Points = append(r.Points, snap)
	return nil
}

func (r *Recorder) EndSnapshot(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ended++
	return nil
}

func (r *Recorder) AbortSnapshot(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Aborted++
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed++
	return nil
}
