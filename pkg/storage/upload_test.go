package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingUploader collects chunks in arrival order and reassembles them.
type recordingUploader struct {
	chunks    []Chunk
	buf       bytes.Buffer
	completed bool
	failAt    int64
}

func (u *recordingUploader) SessionID() string { return "test-session" }

func (u *recordingUploader) UploadChunk(ctx context.Context, chunk Chunk, data []byte) error {
	if u.failAt > 0 && chunk.Index == u.failAt {
		return errors.New("boom")
	}
	u.chunks = append(u.chunks, chunk)
	u.buf.Write(data)
	return nil
}

func (u *recordingUploader) Complete(ctx context.Context) error {
	u.completed = true
	return nil
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestUploadFileInChunks(t *testing.T) {
	path := writeTempFile(t, 1050)
	want, err := os.ReadFile(path)
	require.NoError(t, err)

	up := &recordingUploader{}
	require.NoError(t, UploadFileInChunks(context.Background(), up, path, 100))

	// Chunks arrive strictly in index order and reassemble the file exactly.
	require.Len(t, up.chunks, 11)
	for i, chunk := range up.chunks {
		assert.Equal(t, int64(i), chunk.Index)
	}
	assert.Equal(t, want, up.buf.Bytes())
	assert.True(t, up.completed)
}

func TestUploadFileInChunksSingleChunk(t *testing.T) {
	path := writeTempFile(t, 42)

	up := &recordingUploader{}
	require.NoError(t, UploadFileInChunks(context.Background(), up, path, 1<<20))

	require.Len(t, up.chunks, 1)
	assert.Equal(t, int64(42), up.chunks[0].Size)
	assert.True(t, up.completed)
}

func TestUploadFileInChunksAbortsOnFailure(t *testing.T) {
	path := writeTempFile(t, 1000)

	up := &recordingUploader{failAt: 3}
	err := UploadFileInChunks(context.Background(), up, path, 100)
	require.Error(t, err)

	// Nothing after the failed chunk is sent and the session never completes.
	assert.Len(t, up.chunks, 3)
	assert.False(t, up.completed)
}

func TestUploadFileInChunksTooManyParts(t *testing.T) {
	path := writeTempFile(t, 20002)

	up := &recordingUploader{}
	err := UploadFileInChunks(context.Background(), up, path, 2)
	require.ErrorIs(t, err, ErrTooManyParts)

	// The plan is rejected before any chunk is sent.
	assert.Empty(t, up.chunks)
}
