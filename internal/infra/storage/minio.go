package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

// MinioStore keeps previews in a bucket and hands out presigned GET URLs
type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
	expiry     time.Duration
	maxDim     int
	maxPixels  int
}

// NewMinio connects and makes sure the bucket exists
func NewMinio(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, expiry time.Duration, maxDim, maxPixels int) (*MinioStore, error) {
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
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &MinioStore{client: cli, bucketName: bucket, region: region, prefix: "previews", expiry: expiry, maxDim: maxDim, maxPixels: maxPixels}, nil
}

// Create implements sketch.PreviewStore
func (s *MinioStore) Create(ctx context.Context, file *sketch.File) (sketch.Preview, error) {
	data, ct, err := Thumbnail(file.Data, s.maxDim, s.maxPixels)
	if err != nil {
		return sketch.Preview{}, err
	}
	key := path.Join(s.prefix, string(file.ID), uuid.New().String())

	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ct,
	})
	if err != nil {
		return sketch.Preview{}, fmt.Errorf("upload preview: %w", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.expiry, url.Values{})
	if err != nil {
		// do not leave an unreachable object behind
		_ = s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
		return sketch.Preview{}, fmt.Errorf("presign preview: %w", err)
	}
	return sketch.Preview{Key: key, URL: u.String()}, nil
}

// Release implements sketch.PreviewStore
func (s *MinioStore) Release(ctx context.Context, p sketch.Preview) error {
	return s.client.RemoveObject(ctx, s.bucketName, p.Key, minio.RemoveObjectOptions{})
}

// Check implements middleware.HealthChecker
func (s *MinioStore) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s not found", s.bucketName)
	}
	return nil
}
