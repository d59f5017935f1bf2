package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// R2Backend stores results in a Cloudflare R2 bucket through the
// S3-compatible API and hands out presigned GET URLs.
type R2Backend struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

func NewR2Backend(config *BackendConfig) (*R2Backend, error) {
	client, err := minio.New(config.R2Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.R2AccessKey, config.R2SecretKey, ""),
		Secure: true,
		Region: "auto",
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, config.R2Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", config.R2Bucket)
	}

	urlExpiry := config.URLExpiry
	if urlExpiry <= 0 {
		urlExpiry = 24 * time.Hour
	}

	return &R2Backend{
		client:    client,
		bucket:    config.R2Bucket,
		urlExpiry: urlExpiry,
	}, nil
}

func (b *R2Backend) Store(ctx context.Context, key string, reader io.Reader, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (b *R2Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	if _, err := obj.Stat(); err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, err
	}

	return obj, nil
}

func (b *R2Backend) Delete(ctx context.Context, key string) error {
	return b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
}

func (b *R2Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *R2Backend) GetURL(ctx context.Context, key string) (string, error) {
	presignedURL, err := b.client.PresignedGetObject(ctx, b.bucket, key, b.urlExpiry, nil)
	if err != nil {
		return "", err
	}
	return presignedURL.String(), nil
}
