package minio

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

var ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "object key and data are required")

// ArtifactRepository reads and writes objects in the artifact bucket.
type ArtifactRepository interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type UploadRequest struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	Bucket     string
	Key        string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

// URI renders the result as s3://bucket/key.
func (r *UploadResult) URI() string {
	return "s3://" + r.Bucket + "/" + r.Key
}

type artifactRepository struct {
	client *Client
	logger logging.Logger
}

// NewArtifactRepository returns a repository over client's bucket.
func NewArtifactRepository(client *Client, log logging.Logger) ArtifactRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &artifactRepository{client: client, logger: log}
}

func (r *artifactRepository) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req == nil || req.Key == "" || len(req.Data) == 0 {
		return nil, ErrInvalidRequest
	}
	api, err := r.client.live()
	if err != nil {
		return nil, err
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := api.PutObject(ctx, r.client.bucket, req.Key, bytes.NewReader(req.Data), int64(len(req.Data)),
		minio.PutObjectOptions{ContentType: contentType, UserMetadata: req.Metadata})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "artifact upload failed").WithDetail(req.Key)
	}
	r.logger.Debug("Artifact uploaded", logging.String("key", req.Key), logging.Int64("size", info.Size))
	return &UploadResult{
		Bucket:     r.client.bucket,
		Key:        req.Key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

func (r *artifactRepository) Exists(ctx context.Context, key string) (bool, error) {
	api, err := r.client.live()
	if err != nil {
		return false, err
	}
	if _, err := api.StatObject(ctx, r.client.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeExternalService, "artifact stat failed").WithDetail(key)
	}
	return true, nil
}

func (r *artifactRepository) Delete(ctx context.Context, key string) error {
	api, err := r.client.live()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, r.client.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "artifact delete failed").WithDetail(key)
	}
	return nil
}

func (r *artifactRepository) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	api, err := r.client.live()
	if err != nil {
		return "", err
	}
	u, err := api.PresignedGetObject(ctx, r.client.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "artifact presign failed").WithDetail(key)
	}
	return u.String(), nil
}
