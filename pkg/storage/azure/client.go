// Package azure implements the storage client for Azure Blob Storage.
//
// Authentication prefers a shared key taken from AZURE_STORAGE_ACCOUNT and
// AZURE_STORAGE_ACCESS_KEY; otherwise the default credential chain applies
// (environment, workload identity, managed identity, CLI).
package azure

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/mlvault/artifactfs/pkg/metrics"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// Config holds configuration for the Azure storage client.
type Config struct {
	// Account is the storage account name. Empty falls back to
	// AZURE_STORAGE_ACCOUNT.
	Account string

	// Container is the blob container name (required, must already exist).
	Container string

	// ChunkSize is the block-upload threshold and block size. Zero selects
	// the default 5 MiB.
	ChunkSize int64

	// Metrics is an optional observer.
	Metrics metrics.Observer
}

// Client is an Azure-Blob-backed storage.Client.
type Client struct {
	svc       *azblob.Client
	sharedKey *azblob.SharedKeyCredential
	container string
	chunkSize int64
	obs       metrics.Observer
}

// New creates an Azure storage client from the given configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("%w: container name is required", storage.ErrInvalidArgument)
	}

	account := cfg.Account
	if account == "" {
		account = os.Getenv("AZURE_STORAGE_ACCOUNT")
	}
	if account == "" {
		return nil, fmt.Errorf("%w: storage account name is required", storage.ErrInvalidArgument)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}

	if key := os.Getenv("AZURE_STORAGE_ACCESS_KEY"); key != "" {
		cred, err := azblob.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("failed to build shared key credential: %w", err)
		}
		svc, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client: %w", err)
		}
		return &Client{svc: svc, sharedKey: cred, container: cfg.Container, chunkSize: chunkSize, obs: cfg.Metrics}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Azure credentials: %w", err)
	}
	svc, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return &Client{svc: svc, container: cfg.Container, chunkSize: chunkSize, obs: cfg.Metrics}, nil
}

func (c *Client) Bucket() string                   { return c.container }
func (c *Client) StorageType() storage.StorageType { return storage.TypeAzure }

func (c *Client) blockBlob(key string) *blockblob.Client {
	return c.svc.ServiceClient().NewContainerClient(c.container).NewBlockBlobClient(key)
}

// Find lists blob names under prefix.
func (c *Client) Find(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pager := c.svc.NewListBlobsFlatPager(c.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

// FindInfo lists blobs under prefix with size and created metadata.
func (c *Client) FindInfo(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var infos []storage.FileInfo
	pager := c.svc.NewListBlobsFlatPager(c.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			info := storage.FileInfo{
				Name:       *item.Name,
				ObjectType: "file",
				Suffix:     storage.Suffix(*item.Name),
			}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					info.Size = *item.Properties.ContentLength
				}
				if item.Properties.CreationTime != nil {
					info.Created = item.Properties.CreationTime.UTC().Format(time.RFC3339)
				}
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// GetObject streams one blob down to localPath.
func (c *Client) GetObject(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "GetObject", start, err) }()

	resp, err := c.svc.DownloadStream(ctx, c.container, remotePath, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, remotePath)
		}
		return fmt.Errorf("failed to get %s: %w", remotePath, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	metrics.Bytes(c.obs, "GetObject", n)
	return nil
}

// PutFile uploads one file. Files at or above the chunk size go through the
// block driver; smaller files upload in one request.
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

		if _, err := c.svc.UploadStream(ctx, c.container, remotePath, f, nil); err != nil {
			return fmt.Errorf("failed to put %s: %w", remotePath, err)
		}
		metrics.Bytes(c.obs, "PutFile", fi.Size())
		return nil
	}

	up := c.NewUpload(remotePath)
	metrics.ActiveUpload(c.obs, 1)
	defer metrics.ActiveUpload(c.obs, -1)

	return storage.UploadFileInChunks(ctx, up, localPath, c.chunkSize)
}

// CopyObject starts a server-side copy within the container and waits for it
// to finish.
func (c *Client) CopyObject(ctx context.Context, src, dest string) error {
	srcURL := c.blockBlob(src).URL()
	destBlob := c.blockBlob(dest)

	if _, err := destBlob.StartCopyFromURL(ctx, srcURL, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, src)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}

	// Intra-container copies are usually instantaneous; poll briefly for the
	// pending case.
	for {
		props, err := destBlob.GetProperties(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to check copy of %s: %w", dest, err)
		}
		if props.CopyStatus == nil || *props.CopyStatus != "pending" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// DeleteObject removes one blob. Deleting an absent blob is not an error.
func (c *Client) DeleteObject(ctx context.Context, path string) error {
	_, err := c.svc.DeleteBlob(ctx, c.container, path, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// DeleteObjects removes every blob under prefix.
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

// GeneratePresignedURL returns a read-only SAS URL for the blob. A shared key
// signs directly; otherwise a user delegation key is fetched from the service.
func (c *Client) GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	perms := sas.BlobPermissions{Read: true}
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		ExpiryTime:    time.Now().UTC().Add(expiry),
		Permissions:   perms.String(),
		ContainerName: c.container,
		BlobName:      path,
	}

	var (
		query sas.QueryParameters
		err   error
	)
	if c.sharedKey != nil {
		query, err = values.SignWithSharedKey(c.sharedKey)
	} else {
		start := time.Now().UTC().Format(sas.TimeFormat)
		end := time.Now().UTC().Add(expiry).Format(sas.TimeFormat)
		var udc *service.UserDelegationCredential
		udc, err = c.svc.ServiceClient().GetUserDelegationCredential(ctx, service.KeyInfo{
			Start:  &start,
			Expiry: &end,
		}, nil)
		if err != nil {
			return "", fmt.Errorf("failed to get user delegation key: %w", err)
		}
		query, err = values.SignWithUserDelegation(udc)
	}
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", path, err)
	}

	return c.blockBlob(path).URL() + "?" + query.Encode(), nil
}
