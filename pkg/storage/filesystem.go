package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage persists objects on disk, one directory per bucket.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures every bucket directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./buckets"
	}
	for _, b := range Buckets {
		if err := os.MkdirAll(filepath.Join(baseDir, string(b)), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", b, err)
		}
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save streams r into bucket/key and returns the number of bytes written. The
// object only becomes visible once fully written.
func (s *LocalStorage) Save(bucket Bucket, key string, r io.Reader) (int64, error) {
	target, err := s.resolve(bucket, key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("prepare object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create object file: %w", err)
	}
	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return 0, fmt.Errorf("write object stream: %w", copyErr)
		}
		return 0, fmt.Errorf("close object file: %w", closeErr)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("commit object: %w", err)
	}
	return n, nil
}

// Open returns a read-only handle for the stored object.
func (s *LocalStorage) Open(bucket Bucket, key string) (*os.File, error) {
	target, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open object %s/%s: %w", bucket, key, err)
	}
	return file, nil
}

// Delete removes a stored object if present.
func (s *LocalStorage) Delete(bucket Bucket, key string) error {
	target, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// resolve maps a key onto the bucket directory, refusing keys that escape it.
func (s *LocalStorage) resolve(bucket Bucket, key string) (string, error) {
	if _, err := ParseBucket(string(bucket)); err != nil {
		return "", err
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, string(bucket), filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}
