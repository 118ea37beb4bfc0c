// Package s3 implements the storage client for Amazon S3 and S3-compatible
// object stores (MinIO, localstack, ...).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mlvault/artifactfs/pkg/metrics"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// deleteBatchSize is the S3 DeleteObjects request limit.
const deleteBatchSize = 1000

// Config holds configuration for the S3 storage client.
type Config struct {
	// Bucket is the S3 bucket name (required, must already exist).
	Bucket string

	// Region is the AWS region. Empty falls back to the default chain.
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string

	// AccessKeyID/SecretAccessKey select static credentials. When empty the
	// default credential chain applies (env, shared config, IMDS).
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle addresses the bucket in the URL path instead of the
	// host. Required by most S3-compatible stores.
	ForcePathStyle bool

	// ChunkSize is the multipart threshold and part size. Zero selects the
	// default 5 MiB.
	ChunkSize int64

	// Metrics is an optional observer.
	Metrics metrics.Observer
}

// Client is an S3-backed storage.Client.
type Client struct {
	api       *s3.Client
	presigner *s3.PresignClient
	bucket    string
	chunkSize int64
	obs       metrics.Observer
}

// New creates an S3 storage client from the given configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", storage.ErrInvalidArgument)
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}

	return &Client{
		api:       api,
		presigner: s3.NewPresignClient(api),
		bucket:    cfg.Bucket,
		chunkSize: chunkSize,
		obs:       cfg.Metrics,
	}, nil
}

func (c *Client) Bucket() string                   { return c.bucket }
func (c *Client) StorageType() storage.StorageType { return storage.TypeS3 }

// Find lists object keys under prefix.
func (c *Client) Find(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// FindInfo lists objects under prefix with size and created metadata.
func (c *Client) FindInfo(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var infos []storage.FileInfo
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			created := ""
			if obj.LastModified != nil {
				created = obj.LastModified.UTC().Format(time.RFC3339)
			}
			infos = append(infos, storage.FileInfo{
				Name:       key,
				Size:       aws.ToInt64(obj.Size),
				ObjectType: "file",
				Created:    created,
				Suffix:     storage.Suffix(key),
			})
		}
	}
	return infos, nil
}

// GetObject streams one object down to localPath.
func (c *Client) GetObject(ctx context.Context, localPath, remotePath string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe(c.obs, "GetObject", start, err) }()

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, remotePath)
		}
		return fmt.Errorf("failed to get %s: %w", remotePath, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, out.Body)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	metrics.Bytes(c.obs, "GetObject", n)
	return nil
}

// PutFile uploads one file. Files at or above the chunk size go through the
// multipart driver; smaller files use a single PutObject.
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

		_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(c.bucket),
			Key:           aws.String(remotePath),
			Body:          f,
			ContentLength: aws.Int64(fi.Size()),
		})
		if err != nil {
			return fmt.Errorf("failed to put %s: %w", remotePath, err)
		}
		metrics.Bytes(c.obs, "PutFile", fi.Size())
		return nil
	}

	up, err := c.NewUpload(ctx, remotePath)
	if err != nil {
		return err
	}
	metrics.ActiveUpload(c.obs, 1)
	defer metrics.ActiveUpload(c.obs, -1)

	return storage.UploadFileInChunks(ctx, up, localPath, c.chunkSize)
}

// CopyObject performs a server-side copy within the bucket.
func (c *Client) CopyObject(ctx context.Context, src, dest string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dest),
		CopySource: aws.String(url.PathEscape(c.bucket + "/" + src)),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	return nil
}

// DeleteObject removes one object.
func (c *Client) DeleteObject(ctx context.Context, path string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// DeleteObjects removes every object under prefix using batched deletes.
func (c *Client) DeleteObjects(ctx context.Context, prefix string) error {
	keys, err := c.Find(ctx, prefix)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}

		_, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects under %s: %w", prefix, err)
		}
	}
	return nil
}

// GeneratePresignedURL returns a time-limited GET URL for the object.
func (c *Client) GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", path, err)
	}
	return req.URL, nil
}

// PresignUploadPart returns a presigned URL for uploading one part of a
// multipart session. Used by the registry server to let client-mode callers
// push parts directly to S3.
func (c *Client) PresignUploadPart(ctx context.Context, path, uploadID string, partNumber int32, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(path),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign part %d of %s: %w", partNumber, path, err)
	}
	return req.URL, nil
}

// CreateMultipartUpload starts a multipart session and returns its upload ID.
func (c *Client) CreateMultipartUpload(ctx context.Context, path string) (string, error) {
	out, err := c.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload for %s: %w", path, err)
	}
	return aws.ToString(out.UploadId), nil
}
