package photos

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	pkgerrors "gentree/pkg/errors"
)

// GCSConfig selects the bucket and the object prefix.
type GCSConfig struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	UploadTimeout   time.Duration
}

type writerFactory func(ctx context.Context, object, contentType string) io.WriteCloser

// GCSStore uploads photos to a Google Cloud Storage bucket.
type GCSStore struct {
	bucket    string
	prefix    string
	timeout   time.Duration
	client    *storage.Client
	newWriter writerFactory
	logger    *zap.Logger
}

// NewGCSStore creates a storage client for cfg.Bucket.
func NewGCSStore(ctx context.Context, cfg GCSConfig, logger *zap.Logger) (*GCSStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, pkgerrors.NewValidationError("gcs bucket is required")
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.NewExternalError("gcs", err)
	}

	s := newGCSStore(cfg, nil, logger)
	s.client = client
	s.newWriter = func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := client.Bucket(cfg.Bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
	return s, nil
}

func newGCSStore(cfg GCSConfig, factory writerFactory, logger *zap.Logger) *GCSStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GCSStore{
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		timeout:   timeout,
		newWriter: factory,
		logger:    logger,
	}
}

// StorePhoto uploads the photo at source and returns its gs:// reference.
func (s *GCSStore) StorePhoto(ctx context.Context, personID, source string) (string, error) {
	r, ext, err := openSource(ctx, source)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return s.StorePhotoData(ctx, personID, ext, r)
}

// StorePhotoData uploads data as <prefix>/<personID>.<ext>.
func (s *GCSStore) StorePhotoData(ctx context.Context, personID, ext string, data io.Reader) (string, error) {
	name, err := objectName(personID, ext)
	if err != nil {
		return "", err
	}
	object := name
	if s.prefix != "" {
		object = path.Join(s.prefix, name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := s.newWriter(ctx, object, ContentType(path.Ext(name)[1:]))
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return "", pkgerrors.NewExternalError("gcs", fmt.Errorf("write %s: %w", object, err))
	}
	if err := w.Close(); err != nil {
		return "", pkgerrors.NewExternalError("gcs", fmt.Errorf("close %s: %w", object, err))
	}

	ref := fmt.Sprintf("gs://%s/%s", s.bucket, object)
	s.logger.Info("photo uploaded", zap.String("personID", personID), zap.String("object", ref))
	return ref, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
