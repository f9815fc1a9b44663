package archive

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const uploadPartSize = 8 * 1024 * 1024

// S3Store uploads to an S3 bucket, in parts for large files
type S3Store struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
	logger   *zap.Logger
}

// NewS3Store loads the default AWS configuration and connects to bucket
func NewS3Store(ctx context.Context, bucket string, cfg Config, logger *zap.Logger, optFns ...func(*awsconfig.LoadOptions) error) (*S3Store, error) {
	opts := optFns
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		bucket: bucket,
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		logger: logger,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, src *os.File, info Object) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(info.ContentType),
		Metadata:    info.Metadata,
	})
	return err
}

func (s *S3Store) Close() error { return nil }
