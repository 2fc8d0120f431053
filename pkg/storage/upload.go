package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// Inspector enforces size and content-type limits on uploads.
type Inspector struct {
	maxSize int64
	mimeSet map[string]struct{}
}

// NewInspector builds an inspector. An empty allow-list accepts any type.
func NewInspector(maxSize int64, allowed []string) *Inspector {
	set := make(map[string]struct{}, len(allowed))
	for _, m := range allowed {
		set[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &Inspector{maxSize: maxSize, mimeSet: set}
}

// Inspect validates the upload and returns its sniffed MIME type. The stream
// is rewound before returning.
func (i *Inspector) Inspect(u Upload) (string, error) {
	if u.Content == nil || u.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if i.maxSize > 0 && u.Size > i.maxSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", i.maxSize))
	}
	mimeType, err := detectMime(u)
	if err != nil {
		return "", err
	}
	if len(i.mimeSet) > 0 {
		if _, ok := i.mimeSet[strings.ToLower(mimeType)]; !ok {
			return "", appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
		}
	}
	return mimeType, nil
}

func detectMime(u Upload) (string, error) {
	header := make([]byte, 512)
	n, err := u.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := u.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	if u.MimeType != "" && u.MimeType != "application/octet-stream" {
		return strings.ToLower(u.MimeType), nil
	}
	return http.DetectContentType(header[:n]), nil
}

// ObjectKey builds "<prefix>/<stem>-<unix>.<ext>" keeping the client's
// extension when it has one.
func ObjectKey(prefix, stem, original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	if ext == "" {
		ext = ".bin"
	}
	if stem == "" {
		stem = randomSuffix()
	}
	key := fmt.Sprintf("%s-%d%s", sanitize(stem), time.Now().UnixMilli(), ext)
	if prefix == "" {
		return key
	}
	return strings.Trim(prefix, "/") + "/" + key
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func mimeExtension(mime string) string {
	switch strings.ToLower(strings.SplitN(mime, ";", 2)[0]) {
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/zip":
		return ".zip"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "text/plain":
		return ".txt"
	default:
		return ""
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
