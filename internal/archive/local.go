package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// LocalStorage implements ObjectStorage on a directory, for shared mounts
// and tests.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Upload(ctx context.Context, localPath, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destPath := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

func (l *LocalStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []string
	err := filepath.Walk(l.fullPath(prefix), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(l.basePath, path)
			if err != nil {
				return err
			}
			objects = append(objects, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(objects)
	return objects, nil
}

func (l *LocalStorage) fullPath(objectPath string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(objectPath))
}
