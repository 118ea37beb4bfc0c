package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlvault/artifactfs/pkg/storage"
)

func newClient(t *testing.T) (*Client, string) {
	t.Helper()
	root := t.TempDir()
	c, err := New(root, nil)
	require.NoError(t, err)
	return c, root
}

func TestFindMissingPrefix(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindSingleFile(t *testing.T) {
	c, root := newClient(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	keys, err := c.Find(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, keys)
}

func TestPutGetRoundtrip(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, c.PutFile(ctx, src, "deep/nested/out.bin"))

	dest := filepath.Join(t.TempDir(), "back.bin")
	require.NoError(t, c.GetObject(ctx, dest, "deep/nested/out.bin"))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestGetObjectMissing(t *testing.T) {
	c, _ := newClient(t)

	err := c.GetObject(context.Background(), filepath.Join(t.TempDir(), "x"), "missing.bin")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteObjectIdempotent(t *testing.T) {
	c, _ := newClient(t)

	// Deleting an absent object is not an error.
	assert.NoError(t, c.DeleteObject(context.Background(), "never-existed"))
}

func TestUploadDriverCompletes(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(src, []byte("chunked payload"), 0o644))

	up := c.NewUpload(src, "uploaded.bin")
	assert.NotEmpty(t, up.SessionID())

	require.NoError(t, storage.UploadFileInChunks(ctx, up, src, 4))

	keys, err := c.Find(ctx, "uploaded.bin")
	require.NoError(t, err)
	assert.Equal(t, []string{"uploaded.bin"}, keys)
}

func TestGeneratePresignedURL(t *testing.T) {
	c, root := newClient(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	url, err := c.GeneratePresignedURL(ctx, "a.txt", storage.DefaultPresignExpiry)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.txt"), url)

	_, err = c.GeneratePresignedURL(ctx, "missing.txt", storage.DefaultPresignExpiry)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
