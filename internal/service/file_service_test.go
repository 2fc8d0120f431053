package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

func newTestFileService(t *testing.T, ttl time.Duration) (*FileService, *storage.LocalStorage) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", ttl)
	inspector := storage.NewInspector(1024, []string{"application/pdf", "text/plain; charset=utf-8"})
	return NewFileService(store, signer, inspector, "/api/v1/files/", NewMetricsService(), nil), store
}

func TestFileServicePutLinkOpen(t *testing.T) {
	svc, _ := newTestFileService(t, time.Minute)
	ctx := context.Background()

	key, err := svc.Put(ctx, storage.BucketHomeworkFiles, "homeworks/t1", "Quadratics", storage.Upload{
		Filename: "quadratics.pdf", Size: 8, MimeType: "application/pdf", Content: strings.NewReader("%PDF-1.4"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "homeworks/t1/quadratics-"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	link, err := svc.Link(storage.BucketHomeworkFiles, key)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/files/"))

	obj, err := svc.Open(ctx, strings.TrimPrefix(link.URL, "/api/v1/files/"))
	require.NoError(t, err)
	defer obj.File.Close()
	body, err := io.ReadAll(obj.File)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "application/pdf", obj.MimeType)

	svc.Remove(storage.BucketHomeworkFiles, key)
	_, err = svc.Open(ctx, strings.TrimPrefix(link.URL, "/api/v1/files/"))
	assert.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))
}

func TestFileServiceRejects(t *testing.T) {
	svc, _ := newTestFileService(t, time.Minute)
	ctx := context.Background()

	_, err := svc.Put(ctx, storage.BucketHomeworkFiles, "x", "big", storage.Upload{
		Filename: "big.pdf", Size: 4096, MimeType: "application/pdf", Content: strings.NewReader(strings.Repeat("a", 4096)),
	})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = svc.Put(ctx, storage.BucketHomeworkFiles, "x", "pic", storage.Upload{
		Filename: "pic.gif", Size: 6, MimeType: "image/gif", Content: strings.NewReader("GIF89a"),
	})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = svc.Open(ctx, "garbage")
	assert.True(t, appErrors.IsKind(err, appErrors.ErrUnauthorized))
}
