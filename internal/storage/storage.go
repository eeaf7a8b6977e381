// AngelaMos | 2026
// storage.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

type Object struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

type ObjectStore interface {
	Put(
		ctx context.Context,
		key string,
		body io.Reader,
		size int64,
		contentType string,
	) (*Object, error)
	Delete(ctx context.Context, key string) error
}

type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStore(
	ctx context.Context,
	cfg config.StorageConfig,
) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
	}, nil
}

func (s *MinioStore) Put(
	ctx context.Context,
	key string,
	body io.Reader,
	size int64,
	contentType string,
) (*Object, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &Object{
		Key:         key,
		URL:         s.publicURL + "/" + key,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("minio ping failed: %w", err)
	}
	return nil
}

// UploadRule limits what an upload may contain.
type UploadRule struct {
	Prefix       string
	MaxBytes     int64
	AllowedTypes []string
}

func (r UploadRule) allows(contentType string) bool {
	for _, t := range r.AllowedTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// SaveFormFile validates a multipart file against rule and stores it under
// rule.Prefix with a random object name.
func SaveFormFile(
	ctx context.Context,
	store ObjectStore,
	fh *multipart.FileHeader,
	rule UploadRule,
) (*Object, error) {
	if fh.Size > rule.MaxBytes {
		return nil, fmt.Errorf("%s: %w", fh.Filename, ErrTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only multipart part

	mtype, err := sniff(f)
	if err != nil {
		return nil, err
	}

	contentType := mtype.String()
	if !rule.allows(contentType) {
		return nil, fmt.Errorf("%s (%s): %w", fh.Filename, contentType, ErrUnsupportedType)
	}

	// the object name never carries the client's file name
	key := path.Join(rule.Prefix, uuid.New().String()+mtype.Extension())

	return store.Put(ctx, key, f, fh.Size, contentType)
}

// sniff detects the type from the leading bytes and rewinds f.
func sniff(f multipart.File) (*mimetype.MIME, error) {
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	return mtype, nil
}

var (
	ImageTypes = []string{"image/"}
	MediaTypes = []string{"image/", "video/"}
)
