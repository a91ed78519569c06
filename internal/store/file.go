package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"wiki-knowledge-platform/internal/apperr"
)

// LocalFileStore keeps document files under one base directory and refuses
// paths that escape it.
type LocalFileStore struct {
	baseDir string
}

func NewLocalFileStore(baseDir string) (*LocalFileStore, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, "invalid storage directory", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to create storage directory", err)
	}
	return &LocalFileStore{baseDir: abs}, nil
}

// Save writes content and returns the stored path.
func (s *LocalFileStore) Save(_ context.Context, name string, content []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperr.Wrap(apperr.KindUnknown, "failed to create file directory", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", apperr.Wrap(apperr.KindUnknown, "failed to write file", err)
	}
	return path, nil
}

// DeleteFile removes the file. A missing file is not an error: the goal is
// the file being gone.
func (s *LocalFileStore) DeleteFile(_ context.Context, path string) error {
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.KindUnknown, "failed to delete file", err)
	}
	return nil
}

func (s *LocalFileStore) resolve(path string) (string, error) {
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.baseDir, candidate)
	}
	candidate = filepath.Clean(candidate)
	if candidate != s.baseDir && !strings.HasPrefix(candidate, s.baseDir+string(filepath.Separator)) {
		return "", apperr.Newf(apperr.KindInvalidArgument, "path escapes storage directory")
	}
	return candidate, nil
}
