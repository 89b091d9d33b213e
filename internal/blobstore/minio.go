// Package blobstore keeps original document files in S3-compatible object
// storage, laid out one prefix per collection so a collection's files can be
// removed together.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/plnlabs/vectord/internal/logging"
)

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	return nil
}

// Store wraps a MinIO client scoped to one bucket.
type Store struct {
	client *minio.Client
	bucket string
	logger *logging.Logger
}

// New connects to object storage. The bucket is not created here; call
// EnsureBucket before the first write.
func New(cfg Config, logger *logging.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blobstore config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.Named("blobstore"),
	}, nil
}

// ObjectPath returns the object key for an original file in a collection.
func ObjectPath(collection, fileName string) string {
	return path.Join(collection, "originals", fileName)
}

// CollectionPrefix returns the key prefix holding everything a collection owns.
func CollectionPrefix(collection string) string {
	return collection + "/"
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %q: %w", s.bucket, err)
	}
	s.logger.Info(ctx, "created bucket", zap.String("bucket", s.bucket))
	return nil
}

// Upload stores an original file under the collection's prefix and returns
// the object key. Pass size -1 when the length is unknown.
func (s *Store) Upload(ctx context.Context, collection, fileName string, r io.Reader, size int64, contentType string) (string, error) {
	key := ObjectPath(collection, fileName)
	opts := minio.PutObjectOptions{ContentType: contentType}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts)
	if err != nil {
		return "", fmt.Errorf("uploading %q: %w", key, err)
	}
	s.logger.Debug(ctx, "uploaded object",
		zap.String("key", key),
		zap.Int64("size", info.Size),
	)
	return key, nil
}

// Download opens an original file for reading. The caller closes the reader.
func (s *Store) Download(ctx context.Context, collection, fileName string) (io.ReadCloser, error) {
	key := ObjectPath(collection, fileName)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", key, err)
	}
	return obj, nil
}

// DeleteByPrefix removes every object under a key prefix and returns how many
// were deleted. Objects that fail to delete are logged and skipped so one bad
// object does not strand the rest.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return deleted, fmt.Errorf("listing objects under %q: %w", prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			s.logger.Warn(ctx, "failed to delete object",
				zap.String("key", obj.Key),
				zap.Error(err),
			)
			continue
		}
		deleted++
	}
	s.logger.Info(ctx, "deleted objects by prefix",
		zap.String("prefix", prefix),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}
