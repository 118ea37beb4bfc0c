// Package local implements the storage client for a local filesystem root.
//
// Object keys are paths relative to the configured root directory. No real
// presigning is possible; presigned URLs degrade to absolute paths.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mlvault/artifactfs/pkg/metrics"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// Client is a filesystem-backed storage.Client rooted at one directory.
type Client struct {
	root string
	obs  metrics.Observer
}

// New creates a local storage client rooted at root, creating the directory
// if needed.
func New(root string, obs metrics.Observer) (*Client, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", abs, err)
	}
	return &Client{root: abs, obs: obs}, nil
}

func (c *Client) Bucket() string                   { return c.root }
func (c *Client) StorageType() storage.StorageType { return storage.TypeLocal }

// abspath resolves a bucket-relative key to a path under the root.
func (c *Client) abspath(key string) string {
	return filepath.Join(c.root, filepath.FromSlash(key))
}

// Find lists object keys under prefix. The prefix must exist; a missing
// directory is a NotFound, unlike object stores which return empty lists.
func (c *Client) Find(ctx context.Context, prefix string) ([]string, error) {
	target := c.abspath(prefix)

	fi, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", prefix, err)
	}

	if !fi.IsDir() {
		return []string{c.key(target)}, nil
	}

	files, err := storage.ListLocalFiles(target)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", prefix, err)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, c.key(f))
	}
	return keys, nil
}

// FindInfo lists objects under prefix with size and modification metadata.
func (c *Client) FindInfo(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	keys, err := c.Find(ctx, prefix)
	if err != nil {
		return nil, err
	}

	infos := make([]storage.FileInfo, 0, len(keys))
	for _, key := range keys {
		fi, err := os.Stat(c.abspath(key))
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", key, err)
		}
		infos = append(infos, storage.FileInfo{
			Name:       key,
			Size:       fi.Size(),
			ObjectType: "file",
			Created:    fi.ModTime().UTC().Format(time.RFC3339),
			Suffix:     storage.Suffix(key),
		})
	}
	return infos, nil
}

// GetObject copies one object out of the root to localPath.
func (c *Client) GetObject(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "GetObject", start, err) }()

	n, err := copyFile(c.abspath(remotePath), localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, remotePath)
		}
		return fmt.Errorf("failed to get %s: %w", remotePath, err)
	}
	metrics.Bytes(c.obs, "GetObject", n)
	return nil
}

// PutFile copies one local file into the root. No chunking is required for
// direct filesystem access; the whole file moves in one step.
func (c *Client) PutFile(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "PutFile", start, err) }()

	n, err := copyFile(localPath, c.abspath(remotePath))
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", localPath, err)
	}
	metrics.Bytes(c.obs, "PutFile", n)
	return nil
}

// CopyObject copies one object within the root.
func (c *Client) CopyObject(ctx context.Context, src, dest string) error {
	if _, err := copyFile(c.abspath(src), c.abspath(dest)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, src)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	return nil
}

// DeleteObject removes one object. Deleting an absent object is not an error.
func (c *Client) DeleteObject(ctx context.Context, path string) error {
	if err := os.Remove(c.abspath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// DeleteObjects removes everything under prefix.
func (c *Client) DeleteObjects(ctx context.Context, prefix string) error {
	if err := os.RemoveAll(c.abspath(prefix)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", prefix, err)
	}
	return nil
}

// GeneratePresignedURL degrades to the absolute path of an existing file;
// real signing is not possible on a local filesystem.
func (c *Client) GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	target := c.abspath(path)
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return target, nil
}

// NewUpload creates the local multipart driver for remotePath. Chunk uploads
// are no-ops; the file is copied whole on Complete. PutFile copies directly
// and never constructs this driver; it exists for callers that feed every
// backend through the generic chunk loop.
func (c *Client) NewUpload(localPath, remotePath string) *Upload {
	return &Upload{
		client:     c,
		sessionID:  uuid.NewString(),
		localPath:  localPath,
		remotePath: remotePath,
	}
}

func (c *Client) key(abs string) string {
	rel, err := filepath.Rel(c.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Upload is the local multipart driver. It exists so the local backend
// satisfies the same three-operation contract as the cloud drivers.
type Upload struct {
	client     *Client
	sessionID  string
	localPath  string
	remotePath string
}

func (u *Upload) SessionID() string { return u.sessionID }

// UploadChunk is a no-op wrapper; local storage needs no chunking.
func (u *Upload) UploadChunk(ctx context.Context, chunk storage.Chunk, data []byte) error {
	return nil
}

// Complete copies the whole file into the root.
func (u *Upload) Complete(ctx context.Context) error {
	return u.client.PutFile(ctx, u.localPath, u.remotePath)
}

// copyFile copies src to dst, creating parent directories, and returns the
// number of bytes written.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}
