// Package gcs implements the storage client for Google Cloud Storage.
//
// Credentials are resolved in order: GOOGLE_ACCOUNT_JSON_BASE64 (base64
// service-account JSON), GOOGLE_APPLICATION_CREDENTIALS, the application
// default chain, and finally anonymous access for public buckets.
package gcs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gstorage "cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/metrics"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// Config holds configuration for the GCS storage client.
type Config struct {
	// Bucket is the GCS bucket name (required, must already exist).
	Bucket string

	// ChunkSize is the resumable-upload threshold and chunk size. Zero
	// selects the default 5 MiB.
	ChunkSize int64

	// Metrics is an optional observer.
	Metrics metrics.Observer
}

// Client is a GCS-backed storage.Client.
type Client struct {
	api         *gstorage.Client
	tokenSource oauth2.TokenSource
	bucket      string
	chunkSize   int64
	obs         metrics.Observer
}

const uploadScope = "https://www.googleapis.com/auth/devstorage.read_write"

// New creates a GCS storage client from the given configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", storage.ErrInvalidArgument)
	}

	var opts []option.ClientOption
	var tokenSource oauth2.TokenSource

	if encoded := os.Getenv("GOOGLE_ACCOUNT_JSON_BASE64"); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode GOOGLE_ACCOUNT_JSON_BASE64: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, uploadScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
		tokenSource = creds.TokenSource
	} else if creds, err := google.FindDefaultCredentials(ctx, uploadScope); err == nil {
		opts = append(opts, option.WithCredentials(creds))
		tokenSource = creds.TokenSource
	} else {
		logger.Debug("no GCS credentials found, using anonymous access")
		opts = append(opts, option.WithoutAuthentication())
	}

	api, err := gstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}

	return &Client{
		api:         api,
		tokenSource: tokenSource,
		bucket:      cfg.Bucket,
		chunkSize:   chunkSize,
		obs:         cfg.Metrics,
	}, nil
}

func (c *Client) Bucket() string                   { return c.bucket }
func (c *Client) StorageType() storage.StorageType { return storage.TypeGCS }

// Find lists object keys under prefix.
func (c *Client) Find(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := c.api.Bucket(c.bucket).Objects(ctx, &gstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// FindInfo lists objects under prefix with size and created metadata.
func (c *Client) FindInfo(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var infos []storage.FileInfo
	it := c.api.Bucket(c.bucket).Objects(ctx, &gstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		infos = append(infos, storage.FileInfo{
			Name:       attrs.Name,
			Size:       attrs.Size,
			ObjectType: "file",
			Created:    attrs.Created.UTC().Format(time.RFC3339),
			Suffix:     storage.Suffix(attrs.Name),
		})
	}
	return infos, nil
}

// GetObject streams one object down to localPath.
func (c *Client) GetObject(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "GetObject", start, err) }()

	r, err := c.api.Bucket(c.bucket).Object(remotePath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, remotePath)
		}
		return fmt.Errorf("failed to get %s: %w", remotePath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	metrics.Bytes(c.obs, "GetObject", n)
	return nil
}

// PutFile uploads one file. Files at or above the chunk size go through a
// resumable upload session; smaller files use a single writer.
func (c *Client) PutFile(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "PutFile", start, err) }()

	fi, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	if fi.Size() < c.chunkSize {
		f, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", localPath, err)
		}
		defer f.Close()

		w := c.api.Bucket(c.bucket).Object(remotePath).NewWriter(ctx)
		n, err := io.Copy(w, f)
		if err != nil {
			w.Close()
			return fmt.Errorf("failed to put %s: %w", remotePath, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("failed to finalize %s: %w", remotePath, err)
		}
		metrics.Bytes(c.obs, "PutFile", n)
		return nil
	}

	up, err := c.NewUpload(ctx, remotePath, fi.Size())
	if err != nil {
		return err
	}
	metrics.ActiveUpload(c.obs, 1)
	defer metrics.ActiveUpload(c.obs, -1)

	return storage.UploadFileInChunks(ctx, up, localPath, c.chunkSize)
}

// CopyObject performs a server-side copy within the bucket.
func (c *Client) CopyObject(ctx context.Context, src, dest string) error {
	srcObj := c.api.Bucket(c.bucket).Object(src)
	dstObj := c.api.Bucket(c.bucket).Object(dest)
	if _, err := dstObj.CopierFrom(srcObj).Run(ctx); err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, src)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	return nil
}

// DeleteObject removes one object. Deleting an absent object is not an error.
func (c *Client) DeleteObject(ctx context.Context, path string) error {
	err := c.api.Bucket(c.bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, gstorage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// DeleteObjects removes every object under prefix.
func (c *Client) DeleteObjects(ctx context.Context, prefix string) error {
	keys, err := c.Find(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.DeleteObject(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// GeneratePresignedURL returns a time-limited GET URL signed with the
// service-account key.
func (c *Client) GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	url, err := c.api.Bucket(c.bucket).SignedURL(path, &gstorage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
		Scheme:  gstorage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", path, err)
	}
	return url, nil
}
