// Package archive copies the files a run produced to object storage once
// the sinks are closed. Destinations are URLs: s3://bucket/prefix,
// gs://bucket/prefix or a local directory (file:///path or a bare path).
package archive

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/feaout/pkg/errors"
)

// Store puts one object under key
type Store interface {
	Put(ctx context.Context, key string, src *os.File, info Object) error
	Close() error
}

// Object describes an uploaded file
type Object struct {
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Config selects and authenticates the destination
type Config struct {
	URL string `yaml:"url" json:"url" mapstructure:"url"`
	// Region is the S3 region; empty uses the AWS default chain
	Region string `yaml:"region" json:"region" mapstructure:"region"`
	// Endpoint overrides the S3 or GCS endpoint, e.g. for MinIO or an emulator
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	// CredentialsFile is a GCS service account key
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
	// Concurrency bounds parallel uploads; zero means 4
	Concurrency int `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
}

// Enabled reports whether a destination is configured
func (c Config) Enabled() bool { return c.URL != "" }

// Destination is a parsed archive URL
type Destination struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseURL splits a destination URL into scheme, bucket and key prefix.
// Local directories use the "file" scheme with the directory as Prefix.
func ParseURL(raw string) (Destination, error) {
	if raw == "" {
		return Destination{}, errors.New(errors.ErrorTypeConfig, "archive URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Destination{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid archive URL").WithDetail("url", raw)
	}
	switch u.Scheme {
	case "s3", "gs":
		if u.Host == "" {
			return Destination{}, errors.Newf(errors.ErrorTypeConfig, "archive URL %q has no bucket", raw)
		}
		return Destination{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	case "file":
		return Destination{Scheme: "file", Prefix: filepath.FromSlash(u.Path)}, nil
	case "":
		return Destination{Scheme: "file", Prefix: raw}, nil
	default:
		return Destination{}, errors.Newf(errors.ErrorTypeConfig, "unsupported archive scheme %q", u.Scheme).
			WithDetail("url", raw)
	}
}

// Key returns the object key for a file of a run
func (d Destination) Key(runID, file string) string {
	return path.Join(d.Prefix, runID, filepath.Base(file))
}

// Open connects to the destination in cfg
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, Destination, error) {
	dest, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, Destination{}, err
	}
	var store Store
	switch dest.Scheme {
	case "s3":
		store, err = NewS3Store(ctx, dest.Bucket, cfg, logger)
	case "gs":
		store, err = NewGCSStore(ctx, dest.Bucket, cfg, logger)
	default:
		store, err = NewDirStore(dest.Prefix)
		dest.Prefix = ""
	}
	if err != nil {
		return nil, Destination{}, err
	}
	return store, dest, nil
}

// Archiver uploads the output files of one run
type Archiver struct {
	store       Store
	dest        Destination
	concurrency int
	logger      *zap.Logger
}

// New creates an archiver writing to store under dest
func New(store Store, dest Destination, concurrency int, logger *zap.Logger) *Archiver {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		store:       store,
		dest:        dest,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "archive")),
	}
}

// Upload copies files under <prefix>/<runID>/ and returns the keys written.
// Files that do not exist are skipped; meta is attached to every object.
func (a *Archiver) Upload(ctx context.Context, runID string, files []string, meta map[string]string) ([]string, error) {
	keys := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			key, err := a.put(ctx, runID, name, meta)
			keys[i] = key
			return err
		})
	}
	err := g.Wait()

	written := keys[:0]
	for _, k := range keys {
		if k != "" {
			written = append(written, k)
		}
	}
	return written, err
}

func (a *Archiver) put(ctx context.Context, runID, name string, meta map[string]string) (string, error) {
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		a.logger.Debug("skipping missing output", zap.String("file", name))
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open output").WithDetail("file", name)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to stat output").WithDetail("file", name)
	}

	info := Object{
		Size:        st.Size(),
		ContentType: ContentType(name),
		Metadata: map[string]string{
			"run_id":   runID,
			"uploaded": time.Now().UTC().Format(time.RFC3339),
		},
	}
	for k, v := range meta {
		info.Metadata[k] = v
	}

	key := a.dest.Key(runID, name)
	start := time.Now()
	if err := a.store.Put(ctx, key, f, info); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to archive output").
			WithDetail("file", name).
			WithDetail("key", key)
	}
	a.logger.Info("archived output",
		zap.String("file", name),
		zap.String("key", key),
		zap.Int64("bytes", info.Size),
		zap.Duration("took", time.Since(start)))
	return key, nil
}

// Close releases the store
func (a *Archiver) Close() error { return a.store.Close() }

var contentTypes = map[string]string{
	".csv":     "text/csv",
	".jsonl":   "application/x-ndjson",
	".parquet": "application/vnd.apache.parquet",
	".avro":    "application/avro",
	".arrow":   "application/vnd.apache.arrow.file",
	".db":      "application/vnd.sqlite3",
	".sqlite":  "application/vnd.sqlite3",
}

// ContentType guesses the MIME type from the extension, ignoring a
// trailing compression suffix
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".gz", ".zst", ".lz4", ".snappy", ".s2":
		return "application/octet-stream"
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
