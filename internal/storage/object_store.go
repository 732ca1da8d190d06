package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"imagepacks/internal/config"
)

// ObjectStore is the S3 compatible blob backend.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

// NewObjectStore builds the client only; it performs no network call.
func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	return exists, nil
}

// CreateBucket treats a bucket that already exists as created, so concurrent
// savers racing on the same date do not fail each other.
func (s *ObjectStore) CreateBucket(ctx context.Context, bucket string) error {
	err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region})
	if err != nil && !isBucketAlreadyExists(err) {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *ObjectStore) PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *ObjectStore) GetObject(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.objectError(bucket, name, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s.objectError(bucket, name, err)
	}
	return obj, nil
}

func (s *ObjectStore) RemoveObjects(ctx context.Context, bucket string, names []string) []RemoveFailure {
	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		for _, name := range names {
			select {
			case objects <- minio.ObjectInfo{Key: name}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var failures []RemoveFailure
	for rErr := range s.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		failures = append(failures, RemoveFailure{Name: rErr.ObjectName, Err: rErr.Err})
	}
	return failures
}

func (s *ObjectStore) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

func (s *ObjectStore) ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", bucket, obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

func (s *ObjectStore) objectError(bucket, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("get object %s/%s: %w", bucket, name, ErrObjectNotFound)
	}
	return fmt.Errorf("get object %s/%s: %w", bucket, name, err)
}

func isBucketAlreadyExists(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return true
	}
	return false
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
