// Package archive copies finished result files to object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/user/cipherbench/internal/benchmark"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
)

// ObjectStorage is the subset of object store operations an archive needs.
type ObjectStorage interface {
	// Upload copies the file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// ListObjects returns object paths under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Archiver uploads a run's output files under <prefix>/<run_id>/.
type Archiver struct {
	store  ObjectStorage
	prefix string
}

func NewArchiver(store ObjectStorage, prefix string) *Archiver {
	return &Archiver{store: store, prefix: prefix}
}

// New builds an Archiver from configuration. It returns nil, nil when
// archiving is disabled.
func New(ctx context.Context, cfg benchmark.ArchiveConfig) (*Archiver, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		store, err := NewLocalStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewArchiver(store, cfg.Prefix), nil
	case "s3":
		s3cfg := DefaultS3Config()
		if cfg.Region != "" {
			s3cfg.Region = cfg.Region
		}
		if cfg.Endpoint != "" {
			s3cfg.Endpoint = cfg.Endpoint
			s3cfg.UsePathStyle = true
		}
		store, err := NewS3Storage(ctx, cfg.Bucket, s3cfg)
		if err != nil {
			return nil, err
		}
		return NewArchiver(store, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", cfg.Type)
	}
}

// ObjectPath is where a local file lands for a given run.
func (a *Archiver) ObjectPath(runID, localPath string) string {
	return path.Join(a.prefix, runID, filepath.Base(localPath))
}

// UploadRun uploads every existing file in paths. Missing files are skipped
// since an output stream may be disabled. Local results are never touched.
func (a *Archiver) UploadRun(ctx context.Context, runID string, paths []string) ([]string, error) {
	var uploaded []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}

		objectPath := a.ObjectPath(runID, p)
		if err := a.store.Upload(ctx, p, objectPath); err != nil {
			return uploaded, &benchmark.Error{
				Kind:    benchmark.KindIOFailure,
				Stage:   benchmark.StateDone,
				Message: "archive upload of " + p + " failed",
				Cause:   err,
			}
		}
		uploaded = append(uploaded, objectPath)
	}
	return uploaded, nil
}
