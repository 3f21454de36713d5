package photos

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	pkgerrors "gentree/pkg/errors"
)

// LocalStore copies photos into a directory on disk.
type LocalStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalStore creates the image directory if needed.
func NewLocalStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid photo directory").WithCause(err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, pkgerrors.NewExternalError("filesystem", err)
	}
	return &LocalStore{dir: abs, logger: logger}, nil
}

// StorePhoto copies source to <dir>/<personID>.<ext> and returns the new path.
func (s *LocalStore) StorePhoto(ctx context.Context, personID, source string) (string, error) {
	r, ext, err := openSource(ctx, source)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return s.StorePhotoData(ctx, personID, ext, r)
}

// StorePhotoData writes data to <dir>/<personID>.<ext>.
func (s *LocalStore) StorePhotoData(ctx context.Context, personID, ext string, data io.Reader) (string, error) {
	name, err := objectName(personID, ext)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".photo-*")
	if err != nil {
		return "", pkgerrors.NewExternalError("filesystem", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return "", pkgerrors.NewExternalError("filesystem", err)
	}
	if err := tmp.Close(); err != nil {
		return "", pkgerrors.NewExternalError("filesystem", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", pkgerrors.NewExternalError("filesystem", err)
	}

	s.logger.Info("photo stored",
		zap.String("personID", personID),
		zap.String("path", target),
		zap.Int64("bytes", n))
	return target, nil
}
