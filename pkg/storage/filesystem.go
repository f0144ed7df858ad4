package storage

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned when an upload exceeds its size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// LocalStorage keeps uploaded documents on disk and serves them from a
// public base URL.
type LocalStorage struct {
	baseDir   string
	publicURL string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir, publicURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: abs, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// ObjectKey builds the storage key for a file owned by owner. The file name
// is reduced to its base name.
func ObjectKey(owner, id, fileName string) string {
	name := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return path.Join("documents", owner, id+"-"+name)
}

// Put writes r to key, refusing more than limit bytes. A partial file is
// removed on failure.
func (s *LocalStorage) Put(key string, r io.Reader, limit int64) (int64, error) {
	target, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(file, src)
	closeErr := file.Close()
	switch {
	case err != nil:
		_ = os.Remove(target)
		return 0, fmt.Errorf("write upload: %w", err)
	case limit > 0 && n > limit:
		_ = os.Remove(target)
		return 0, ErrTooLarge
	case closeErr != nil:
		_ = os.Remove(target)
		return 0, fmt.Errorf("close upload: %w", closeErr)
	}
	return n, nil
}

// Stat returns the stored size of key.
func (s *LocalStorage) Stat(key string) (int64, error) {
	target, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return 0, fmt.Errorf("stat upload: %w", err)
	}
	return info.Size(), nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(key string) (*os.File, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// URL returns the public address of key.
func (s *LocalStorage) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.publicURL + "/" + strings.Join(parts, "/")
}

// resolve maps key under the base directory and rejects keys escaping it.
func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}
