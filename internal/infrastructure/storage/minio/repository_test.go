package minio

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/internal/config"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

func newTestRepo() (*mockAPI, ArtifactRepository) {
	api := new(mockAPI)
	c := NewClientWithAPI(api, config.MinIOConfig{Bucket: "padel-features"}, nil)
	return api, NewArtifactRepository(c, nil)
}

func TestUpload(t *testing.T) {
	api, repo := newTestRepo()
	ctx := context.Background()
	data := []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}
	api.On("PutObject", ctx, "padel-features", "job-1.npy", data, int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream", UserMetadata: map[string]string{"rows": "2"}}).
		Return(minio.UploadInfo{ETag: "etag", Size: int64(len(data))}, nil)

	res, err := repo.Upload(ctx, &UploadRequest{Key: "job-1.npy", Data: data, Metadata: map[string]string{"rows": "2"}})
	require.NoError(t, err)
	assert.Equal(t, "etag", res.ETag)
	assert.Equal(t, "s3://padel-features/job-1.npy", res.URI())
	api.AssertExpectations(t)
}

func TestUpload_Invalid(t *testing.T) {
	_, repo := newTestRepo()
	_, err := repo.Upload(context.Background(), &UploadRequest{Key: "k"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = repo.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpload_Failure(t *testing.T) {
	api, repo := newTestRepo()
	api.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)

	_, err := repo.Upload(context.Background(), &UploadRequest{Key: "k", Data: []byte{1}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

func TestExists(t *testing.T) {
	api, repo := newTestRepo()
	ctx := context.Background()
	api.On("StatObject", ctx, "padel-features", "there", minio.StatObjectOptions{}).Return(minio.ObjectInfo{Key: "there"}, nil)
	api.On("StatObject", ctx, "padel-features", "gone", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})
	api.On("StatObject", ctx, "padel-features", "broken", minio.StatObjectOptions{}).Return(minio.ObjectInfo{}, assert.AnError)

	ok, err := repo.Exists(ctx, "there")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Exists(ctx, "broken")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	api, repo := newTestRepo()
	ctx := context.Background()
	api.On("RemoveObject", ctx, "padel-features", "job-1.npy", minio.RemoveObjectOptions{}).Return(nil)
	assert.NoError(t, repo.Delete(ctx, "job-1.npy"))
}

func TestPresignedURL(t *testing.T) {
	api, repo := newTestRepo()
	ctx := context.Background()
	u, _ := url.Parse("http://minio:9000/padel-features/job-1.npy?X-Amz-Signature=abc")
	api.On("PresignedGetObject", ctx, "padel-features", "job-1.npy", time.Hour, url.Values{}).Return(u, nil)

	got, err := repo.PresignedURL(ctx, "job-1.npy", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, u.String(), got)
}
