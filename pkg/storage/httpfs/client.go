// Package httpfs implements the client-mode storage backend. All operations
// relay through the artifactfs registry server; uploads and downloads go
// directly to the real object store when it can hand out presigned URLs or
// resumable sessions.
package httpfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mlvault/artifactfs/pkg/apiclient"
	"github.com/mlvault/artifactfs/pkg/metrics"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// Client is a storage.Client that proxies through the registry server.
type Client struct {
	api       *apiclient.Client
	transfer  *http.Client
	bucket    string
	realType  storage.StorageType
	chunkSize int64
	obs       metrics.Observer
}

// Config holds configuration for the HTTP proxy backend.
type Config struct {
	// API is the registry server client (required).
	API *apiclient.Client

	// Bucket is the bucket name reported by the server's storage settings.
	Bucket string

	// RealType is the storage backend behind the server, as discovered from
	// the storage/settings route. It selects the upload strategy.
	RealType storage.StorageType

	// ChunkSize is the multipart chunk size. Zero selects the default 5 MiB.
	ChunkSize int64

	// Metrics is an optional observer.
	Metrics metrics.Observer
}

// New creates the HTTP proxy backend.
func New(cfg Config) (*Client, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("%w: api client is required", storage.ErrInvalidArgument)
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}
	return &Client{
		api:       cfg.API,
		transfer:  &http.Client{Timeout: 5 * time.Minute},
		bucket:    cfg.Bucket,
		realType:  cfg.RealType,
		chunkSize: chunkSize,
		obs:       cfg.Metrics,
	}, nil
}

func (c *Client) Bucket() string                   { return c.bucket }
func (c *Client) StorageType() storage.StorageType { return storage.TypeHTTPProxy }

// RealType reports the backend behind the server.
func (c *Client) RealType() storage.StorageType { return c.realType }

func pathQuery(path string) url.Values {
	return url.Values{"path": []string{path}}
}

// Find lists object keys under prefix via the server.
func (c *Client) Find(ctx context.Context, prefix string) ([]string, error) {
	var list apiclient.ListResponse
	if err := c.api.GetJSON(ctx, apiclient.RouteFilesList, pathQuery(prefix), &list); err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
		}
		return nil, err
	}
	return list.Files, nil
}

// FindInfo lists objects under prefix with metadata via the server.
func (c *Client) FindInfo(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var list apiclient.ListInfoResponse
	if err := c.api.GetJSON(ctx, apiclient.RouteFilesListInfo, pathQuery(prefix), &list); err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
		}
		return nil, err
	}
	return list.Files, nil
}

// GetObject downloads one object. Object-store backends stream from a
// presigned URL; local backends stream through the server.
func (c *Client) GetObject(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "GetObject", start, err) }()

	var body io.ReadCloser
	if c.realType == storage.TypeLocal {
		resp, err := c.api.RequestWithRetry(ctx, http.MethodGet, apiclient.RouteFiles, pathQuery(remotePath), nil)
		if err != nil {
			if apiclient.IsNotFound(err) {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, remotePath)
			}
			return err
		}
		body = resp.Body
	} else {
		signed, err := c.GeneratePresignedURL(ctx, remotePath, storage.DefaultPresignExpiry)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
		if err != nil {
			return fmt.Errorf("failed to build download request: %w", err)
		}
		resp, err := c.transfer.Do(req)
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", remotePath, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("download of %s returned %d", remotePath, resp.StatusCode)
		}
		body = resp.Body
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, body)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	metrics.Bytes(c.obs, "GetObject", n)
	return nil
}

// PutFile uploads one file using the strategy of the real backend: resumable
// sessions for GCS, presigned parts for S3, a relayed form upload otherwise.
func (c *Client) PutFile(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "PutFile", start, err) }()

	fi, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	switch c.realType {
	case storage.TypeGCS:
		up, err := c.newSessionUpload(ctx, remotePath, fi.Size())
		if err != nil {
			return err
		}
		metrics.ActiveUpload(c.obs, 1)
		defer metrics.ActiveUpload(c.obs, -1)
		return storage.UploadFileInChunks(ctx, up, localPath, c.chunkSize)

	case storage.TypeS3:
		up, err := c.newPartUpload(ctx, remotePath, fi.Size())
		if err != nil {
			return err
		}
		metrics.ActiveUpload(c.obs, 1)
		defer metrics.ActiveUpload(c.obs, -1)
		return storage.UploadFileInChunks(ctx, up, localPath, c.chunkSize)

	default:
		// Local and Azure backends accept the whole file through the server.
		if err := c.relayUpload(ctx, localPath, remotePath); err != nil {
			return err
		}
		metrics.Bytes(c.obs, "PutFile", fi.Size())
		return nil
	}
}

// CopyObject is not exposed by the server routes.
func (c *Client) CopyObject(ctx context.Context, src, dest string) error {
	return fmt.Errorf("%w: server-side copy in client mode", storage.ErrUnsupported)
}

// DeleteObject removes one object via the server.
func (c *Client) DeleteObject(ctx context.Context, path string) error {
	var out apiclient.DeleteResponse
	err := c.api.DeleteJSON(ctx, apiclient.RouteFilesDelete, pathQuery(path), &out)
	if err != nil && !apiclient.IsNotFound(err) {
		return err
	}
	return nil
}

// DeleteObjects removes every object under prefix via the server.
func (c *Client) DeleteObjects(ctx context.Context, prefix string) error {
	query := pathQuery(prefix)
	query.Set("recursive", "true")
	var out apiclient.DeleteResponse
	err := c.api.DeleteJSON(ctx, apiclient.RouteFilesDelete, query, &out)
	if err != nil && !apiclient.IsNotFound(err) {
		return err
	}
	return nil
}

// GeneratePresignedURL asks the server to sign a download URL.
func (c *Client) GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	var signed apiclient.PresignedURLResponse
	if err := c.api.GetJSON(ctx, apiclient.RouteFilesPresigned, pathQuery(path), &signed); err != nil {
		if apiclient.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return "", err
	}
	return signed.URL, nil
}
