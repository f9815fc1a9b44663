package archive

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSStore uploads to a Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	logger *zap.Logger
}

// NewGCSStore connects to bucket with application default credentials or
// cfg.CredentialsFile
func NewGCSStore(ctx context.Context, bucket string, cfg Config, logger *zap.Logger, extra ...option.ClientOption) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), logger: logger}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, src *os.File, info Object) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = info.ContentType
	w.Metadata = info.Metadata
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *GCSStore) Close() error { return s.client.Close() }
