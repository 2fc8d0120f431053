package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate(BucketHomeworkFiles, "homeworks/t-1/abc-1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	bucket, key, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, BucketHomeworkFiles, bucket)
	require.Equal(t, "homeworks/t-1/abc-1.pdf", key)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate(BucketLearningResources, "s-1/sheet.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token)
	require.EqualError(t, err, "token expired")
}

func TestSignedURLSignerTampered(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate(BucketHomeworkSolutions, "solutions/u/h.pdf")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Minute)
	_, _, _, err = other.Parse(token)
	require.Error(t, err)

	_, _, _, err = signer.Parse("homework_files" + token[len("homework_solutions"):])
	require.Error(t, err)
}
