package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

type objectStore interface {
	Save(bucket storage.Bucket, key string, r io.Reader) (int64, error)
	Open(bucket storage.Bucket, key string) (*os.File, error)
	Delete(bucket storage.Bucket, key string) error
}

type urlSigner interface {
	Generate(bucket storage.Bucket, key string) (string, time.Time, error)
	Parse(token string) (storage.Bucket, string, time.Time, error)
}

// StoredObject is an opened object ready to stream to a client.
type StoredObject struct {
	File     *os.File
	Name     string
	Bucket   storage.Bucket
	MimeType string
}

// FileService stores uploads in buckets and hands out signed download links.
type FileService struct {
	store     objectStore
	signer    urlSigner
	inspector *storage.Inspector
	linkBase  string
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewFileService constructs the service. linkBase is the public path that
// serves tokens, e.g. "/api/v1/files".
func NewFileService(store objectStore, signer urlSigner, inspector *storage.Inspector, linkBase string, metrics *MetricsService, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		store:     store,
		signer:    signer,
		inspector: inspector,
		linkBase:  strings.TrimRight(linkBase, "/"),
		metrics:   metrics,
		logger:    logger,
	}
}

// Put validates u and stores it under a generated key below prefix. It
// returns the object key.
func (s *FileService) Put(ctx context.Context, bucket storage.Bucket, prefix, stem string, u storage.Upload) (string, error) {
	mimeType, err := s.inspector.Inspect(u)
	if err != nil {
		return "", err
	}
	key := storage.ObjectKey(prefix, stem, u.Filename, mimeType)
	size, err := s.store.Save(bucket, key, u.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	s.metrics.ObjectStored(string(bucket), size)
	s.logger.Info("object stored", zap.String("bucket", string(bucket)), zap.String("key", key), zap.Int64("size", size))
	return key, nil
}

// Remove deletes an object. Failures are logged only.
func (s *FileService) Remove(bucket storage.Bucket, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(bucket, key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("object delete failed", zap.String("bucket", string(bucket)), zap.String("key", key), zap.Error(err))
	}
}

// Link returns a signed download link for an object.
func (s *FileService) Link(bucket storage.Bucket, key string) (*models.DownloadLink, error) {
	token, expiresAt, err := s.signer.Generate(bucket, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &models.DownloadLink{URL: s.linkBase + "/" + token, ExpiresAt: expiresAt}, nil
}

// Open resolves a signed token into the object it grants.
func (s *FileService) Open(ctx context.Context, token string) (*StoredObject, error) {
	bucket, key, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	f, err := s.store.Open(bucket, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &StoredObject{File: f, Name: path.Base(key), Bucket: bucket, MimeType: mime.TypeByExtension(path.Ext(key))}, nil
}
