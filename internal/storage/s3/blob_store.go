// Package s3 provides a BlobStore backed by an S3-compatible object store.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultEndpoint is the AWS S3 API host.
const DefaultEndpoint = "s3.amazonaws.com"

// Config captures the parameters required to connect to S3.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// BlobStore writes artifacts to a configured S3 bucket.
type BlobStore struct {
	client *minio.Client
	bucket string
}

// NewClient builds a minio client from static credentials.
func NewClient(cfg Config) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

// New creates an S3-backed blob store.
func New(client *minio.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

type statter interface {
	Stat() (os.FileInfo, error)
}

// PutObject uploads data to the configured bucket and returns an s3:// URI.
// Readers exposing Stat (such as *os.File) are sent with a known length;
// anything else is streamed as a multipart upload.
func (s *BlobStore) PutObject(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	size := int64(-1)
	if st, ok := r.(statter); ok {
		if info, err := st.Stat(); err == nil {
			size = info.Size()
		}
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
