// Package storage defines the backend-agnostic storage contract used by the
// artifact registry: the FileSystem facade, the per-backend Client interface,
// and the multipart upload primitives shared by every backend driver.
package storage

import (
	"context"
	"time"
)

// StorageType identifies a concrete storage backend.
type StorageType string

const (
	TypeLocal     StorageType = "local"
	TypeS3        StorageType = "s3"
	TypeGCS       StorageType = "gcs"
	TypeAzure     StorageType = "azure"
	TypeHTTPProxy StorageType = "http"
)

const (
	// DefaultChunkSize is the default multipart chunk size (S3 minimum part size).
	DefaultChunkSize int64 = 5 * 1024 * 1024

	// MaxChunks is the maximum number of parts one multipart upload may carry.
	MaxChunks int64 = 10000

	// DefaultPresignExpiry is used when callers pass a zero expiration.
	DefaultPresignExpiry = 600 * time.Second

	// DefaultMaxParallel bounds per-file fan-out on recursive operations.
	DefaultMaxParallel = 8
)

// FileInfo describes one stored object.
type FileInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ObjectType string `json:"object_type"`
	Created    string `json:"created"`
	Suffix     string `json:"suffix"`
}

// Client is the contract every concrete backend implements. All paths are
// bucket-relative; the facade strips bucket prefixes before calling in.
type Client interface {
	// Bucket returns the bucket (or root directory) this client operates on.
	Bucket() string

	// StorageType reports which backend this client talks to.
	StorageType() StorageType

	// Find lists object names under the given prefix.
	Find(ctx context.Context, prefix string) ([]string, error)

	// FindInfo lists objects under the prefix with size/created metadata.
	FindInfo(ctx context.Context, prefix string) ([]FileInfo, error)

	// GetObject downloads one object to localPath, creating parent directories.
	GetObject(ctx context.Context, localPath, remotePath string) error

	// PutFile uploads one local file to remotePath. Files at or above the
	// chunk threshold go through the backend's multipart driver.
	PutFile(ctx context.Context, localPath, remotePath string) error

	// CopyObject performs a server-side copy of a single object.
	CopyObject(ctx context.Context, src, dest string) error

	// DeleteObject removes one object.
	DeleteObject(ctx context.Context, path string) error

	// DeleteObjects removes every object under the prefix.
	DeleteObjects(ctx context.Context, prefix string) error

	// GeneratePresignedURL returns a time-limited GET URL for the object.
	GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// Uploader drives one multipart upload session. It is exclusively owned by
// the single upload using it and must not be shared across goroutines.
type Uploader interface {
	// SessionID returns the opaque session identifier (upload ID, resumable
	// session URL, or destination path depending on the backend).
	SessionID() string

	// UploadChunk uploads the next chunk. Chunks arrive strictly in
	// increasing index order.
	UploadChunk(ctx context.Context, chunk Chunk, data []byte) error

	// Complete finalizes the upload. The session is invalid afterwards.
	Complete(ctx context.Context) error
}
