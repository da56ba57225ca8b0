package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client     *minio.Client
	bucketName string
}

// New connects to MinIO and makes sure the bucket exists
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket}, nil
}

// PutText stores a transcript as text/plain
func (s *Store) PutText(ctx context.Context, key, text string) error {
	return s.put(ctx, key, []byte(text), "text/plain; charset=utf-8")
}

// PutJSON stores a raw JSON document
func (s *Store) PutJSON(ctx context.Context, key string, raw []byte) error {
	return s.put(ctx, key, raw, "application/json")
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	key = strings.TrimPrefix(key, "/")
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Get reads an archived object back
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimPrefix(key, "/")
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// BucketExists reports whether the archive bucket is reachable
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	return s.client.BucketExists(ctx, s.bucketName)
}
