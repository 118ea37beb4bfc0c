package s3

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// Upload is the S3 multipart driver. Parts are numbered from 1 and their
// ETags collected for the completion call.
type Upload struct {
	api      *s3.Client
	bucket   string
	key      string
	uploadID string
	parts    []types.CompletedPart
}

// NewUpload starts a multipart session for remotePath.
func (c *Client) NewUpload(ctx context.Context, remotePath string) (*Upload, error) {
	uploadID, err := c.CreateMultipartUpload(ctx, remotePath)
	if err != nil {
		return nil, err
	}
	return &Upload{
		api:      c.api,
		bucket:   c.bucket,
		key:      remotePath,
		uploadID: uploadID,
	}, nil
}

func (u *Upload) SessionID() string { return u.uploadID }

// UploadChunk uploads one part. S3 part numbers start at 1, so the zero-based
// chunk index is shifted up.
func (u *Upload) UploadChunk(ctx context.Context, chunk storage.Chunk, data []byte) error {
	partNumber := int32(chunk.Index + 1)

	out, err := u.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(u.key),
		UploadId:      aws.String(u.uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload part %d of %s: %w", partNumber, u.key, err)
	}

	u.parts = append(u.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	return nil
}

// Complete finalizes the upload. Parts must be presented in ascending order.
func (u *Upload) Complete(ctx context.Context) error {
	sort.Slice(u.parts, func(i, j int) bool {
		return aws.ToInt32(u.parts[i].PartNumber) < aws.ToInt32(u.parts[j].PartNumber)
	})

	_, err := u.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(u.bucket),
		Key:      aws.String(u.key),
		UploadId: aws.String(u.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: u.parts,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload for %s: %w", u.key, err)
	}

	logger.Debug("multipart upload complete", "key", u.key, "parts", len(u.parts))
	return nil
}
