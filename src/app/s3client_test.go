package app

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mocking "storefront/src/app/mock"
)

func newTestClient() (*MinioS3Client, *mocking.MockClient) {
	m := new(mocking.MockClient)
	return NewS3ClientWith(m, "mockBucket", time.Minute), m
}

func TestMinioS3Client(t *testing.T) {
	ctx := context.Background()

	t.Run("ObjectURL", func(t *testing.T) {
		s3, m := newTestClient()
		signed := &url.URL{Scheme: "https", Host: "minio.example.com", Path: "/mockBucket/collections/a.png"}
		m.On("PresignedGetObject", ctx, "mockBucket", "collections/a.png", time.Minute, url.Values(nil)).Return(signed, nil)

		got, err := s3.ObjectURL(ctx, "/collections/a.png")
		require.NoError(t, err)
		assert.Equal(t, signed, got)
		m.AssertExpectations(t)
	})

	t.Run("ObjectURL rejects traversal", func(t *testing.T) {
		s3, m := newTestClient()
		_, err := s3.ObjectURL(ctx, "../secrets.txt")
		assert.Error(t, err)
		m.AssertNotCalled(t, "PresignedGetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ListImages", func(t *testing.T) {
		s3, m := newTestClient()
		m.On("ListObjects", mock.Anything, "mockBucket", minio.ListObjectsOptions{Prefix: "collections", Recursive: true}).
			Return([]minio.ObjectInfo{{Key: "collections/a.png"}, {Key: "collections/notes.txt"}, {Key: "collections/b.JPG"}})

		images, err := s3.ListImages(ctx, "collections")
		require.NoError(t, err)
		assert.Equal(t, []string{"collections/a.png", "collections/b.JPG"}, images)
	})

	t.Run("ListImages error", func(t *testing.T) {
		s3, m := newTestClient()
		m.On("ListObjects", mock.Anything, "mockBucket", mock.Anything).
			Return([]minio.ObjectInfo{{Err: errors.New("access denied")}})

		_, err := s3.ListImages(ctx, "")
		assert.EqualError(t, err, "access denied")
	})

	t.Run("UploadFile", func(t *testing.T) {
		s3, m := newTestClient()
		reader := bytes.NewReader([]byte("png bytes"))
		m.On("PutObject", ctx, "mockBucket", "products/1.png", reader, int64(9), minio.PutObjectOptions{ContentType: "image/png"}).Return(nil)

		err := s3.UploadFile(ctx, "products/1.png", reader, 9, "image/png")
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})

	t.Run("UploadFile default content type", func(t *testing.T) {
		s3, m := newTestClient()
		m.On("PutObject", ctx, "mockBucket", "x.bin", mock.Anything, int64(0), minio.PutObjectOptions{ContentType: defaultContentType}).Return(nil)

		assert.NoError(t, s3.UploadFile(ctx, "x.bin", bytes.NewReader(nil), 0, ""))
		m.AssertExpectations(t)
	})

	t.Run("DeleteFile", func(t *testing.T) {
		s3, m := newTestClient()
		m.On("RemoveObject", ctx, "mockBucket", "test.png", minio.RemoveObjectOptions{}).Return(errors.New("boom"))

		err := s3.DeleteFile(ctx, "test.png")
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("checkIn", func(t *testing.T) {
		assert.True(t, checkIn("file.jpg", []string{"jpg", "png", "gif"}))
		assert.False(t, checkIn("jpg", []string{"jpg"}))
		assert.False(t, checkIn("file.txt", ImageFormats))
	})
}
