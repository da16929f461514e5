// Package s3ad writes GeoJSON snapshots to S3-compatible object storage.
package s3ad

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the subset of *minio.Client used by the exporter.
type ObjectPutter interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Exporter struct {
	client ObjectPutter
	bucket string
}

func New(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*Exporter, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("s3: endpoint and credentials are required")
	}
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return NewWithClient(c, bucket), nil
}

func NewWithClient(c ObjectPutter, bucket string) *Exporter {
	return &Exporter{client: c, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (e *Exporter) EnsureBucket(ctx context.Context) error {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket %s: %w", e.bucket, err)
	}
	if exists {
		return nil
	}
	if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("s3: make bucket %s: %w", e.bucket, err)
	}
	log.Info().Str("bucket", e.bucket).Msg("snapshot bucket created")
	return nil
}

// PutSnapshot overwrites key with body.
func (e *Exporter) PutSnapshot(ctx context.Context, key string, body []byte) error {
	if err := e.EnsureBucket(ctx); err != nil {
		return err
	}
	info, err := e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/geo+json"})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	log.Info().Str("bucket", e.bucket).Str("key", key).Int64("size", info.Size).Msg("snapshot stored")
	return nil
}
