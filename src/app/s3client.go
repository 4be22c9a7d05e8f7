package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ClientMinio interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// ObjectStore is what the HTTP layer needs from image storage.
type ObjectStore interface {
	ObjectURL(ctx context.Context, key string) (*url.URL, error)
	ListImages(ctx context.Context, prefix string) ([]string, error)
	UploadFile(ctx context.Context, key string, object io.Reader, size int64, contentType string) error
	DeleteFile(ctx context.Context, key string) error
}

type MinioS3Client struct {
	bucketName    string
	presignExpiry time.Duration
	client        ClientMinio
}

const defaultContentType = "application/octet-stream"

var ImageFormats = []string{"png", "jpg", "jpeg", "webp", "gif", "svg"}

var _ ObjectStore = (*MinioS3Client)(nil)

// NewMinioS3Client creates a new MinioS3Client instance.
func NewMinioS3Client(endpoint, accessKeyID, secretAccessKey, bucketName string, useSSL bool, presignExpiry time.Duration) (*MinioS3Client, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", endpoint, err)
	}
	return NewS3ClientWith(minioClient, bucketName, presignExpiry), nil
}

// NewS3ClientWith wraps an existing minio client.
func NewS3ClientWith(client ClientMinio, bucketName string, presignExpiry time.Duration) *MinioS3Client {
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &MinioS3Client{
		bucketName:    bucketName,
		presignExpiry: presignExpiry,
		client:        client,
	}
}

// CleanKey normalizes an object key and rejects keys escaping the bucket root.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

// ObjectURL returns a presigned GET url for key.
func (s3 *MinioS3Client) ObjectURL(ctx context.Context, key string) (*url.URL, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	u, err := s3.client.PresignedGetObject(ctx, s3.bucketName, key, s3.presignExpiry, nil)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return u, nil
}

// ListImages returns the keys under prefix that look like images.
func (s3 *MinioS3Client) ListImages(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make([]string, 0)
	objectCh := s3.client.ListObjects(ctx, s3.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return result, object.Err
		}
		if !checkIn(object.Key, ImageFormats) {
			continue
		}
		result = append(result, object.Key)
	}
	return result, nil
}

// UploadFile uploads a file to the bucket under key.
func (s3 *MinioS3Client) UploadFile(ctx context.Context, key string, object io.Reader, size int64, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err = s3.client.PutObject(ctx,
		s3.bucketName,
		key,
		object,
		size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s3 *MinioS3Client) DeleteFile(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := s3.client.RemoveObject(ctx, s3.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func checkIn(key string, filters []string) bool {
	parsed := strings.Split(strings.ToLower(key), ".")
	if len(parsed) > 1 {
		for _, f := range filters {
			if f == parsed[len(parsed)-1] {
				return true
			}
		}
	}
	return false
}
