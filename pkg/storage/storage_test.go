package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	for _, b := range Buckets {
		info, err := os.Stat(filepath.Join(dir, string(b)))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	n, err := store.Save(BucketHomeworkFiles, "homeworks/t1/a.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	f, err := store.Open(BucketHomeworkFiles, "homeworks/t1/a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(f)
	_ = f.Close()
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, store.Delete(BucketHomeworkFiles, "homeworks/t1/a.pdf"))
	require.NoError(t, store.Delete(BucketHomeworkFiles, "homeworks/t1/a.pdf"))
	_, err = store.Open(BucketHomeworkFiles, "homeworks/t1/a.pdf")
	require.Error(t, err)
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(BucketHomeworkFiles, "../secret", strings.NewReader("x"))
	require.Error(t, err)
	_, err = store.Save(Bucket("other"), "a.txt", strings.NewReader("x"))
	require.Error(t, err)
}

func TestInspector(t *testing.T) {
	insp := NewInspector(16, []string{"application/pdf"})

	pdf := []byte("%PDF-1.4 body")
	mime, err := insp.Inspect(Upload{Filename: "hw.pdf", Size: int64(len(pdf)), Content: bytes.NewReader(pdf)})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	_, err = insp.Inspect(Upload{Size: 64, Content: bytes.NewReader(make([]byte, 64))})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = insp.Inspect(Upload{Size: 5, Content: strings.NewReader("hello")})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = insp.Inspect(Upload{})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("homeworks/t1", "Ab C", "task.PDF", "")
	assert.True(t, strings.HasPrefix(key, "homeworks/t1/ab_c-"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	key = ObjectKey("", "x", "noext", "image/png")
	assert.True(t, strings.HasSuffix(key, ".png"))
}
