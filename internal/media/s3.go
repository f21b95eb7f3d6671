package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"nahueltrek/api/internal/apperr"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the base of returned URLs, e.g. a CDN in front of the bucket.
	PublicURL string
}

// MinioStore keeps images in an S3-compatible bucket for deployments without Google Drive.
type MinioStore struct {
	client *minio.Client
	cfg    S3Config
	now    func() time.Time
}

func NewMinioStore(cfg S3Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg, now: time.Now}, nil
}

// EnsureBucket creates the bucket on first start.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

func (s *MinioStore) ObjectURL(name string) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + name
	}
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, name)
}

func (s *MinioStore) Upload(ctx context.Context, img Image) (Result, error) {
	name := UniqueName(img.Filename, img.ContentType, s.now())
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, name, img.Body, img.Size, minio.PutObjectOptions{
		ContentType: img.ContentType,
	})
	if err != nil {
		return Result{}, fmt.Errorf("s3 upload %s: %w", name, err)
	}
	return Result{
		URL:      s.ObjectURL(name),
		FileID:   name,
		Filename: name,
		Size:     info.Size,
	}, nil
}

func (s *MinioStore) Delete(ctx context.Context, fileID string) error {
	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, fileID, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return apperr.NotFound("image", fileID)
		}
		return fmt.Errorf("s3 stat %s: %w", fileID, err)
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, fileID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", fileID, err)
	}
	return nil
}
