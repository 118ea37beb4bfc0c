package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/google/uuid"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// Upload is the Azure block-blob driver. Each chunk is staged as an
// uncommitted block; Complete commits the block list in order.
type Upload struct {
	client    *Client
	key       string
	sessionID string
	blockIDs  []string
}

// NewUpload creates a block upload for remotePath. Azure has no explicit
// session object; staged blocks are scoped to the blob until committed.
func (c *Client) NewUpload(remotePath string) *Upload {
	return &Upload{
		client:    c,
		key:       remotePath,
		sessionID: uuid.NewString(),
	}
}

func (u *Upload) SessionID() string { return u.sessionID }

// UploadChunk stages one block. Block IDs must be unique and equal length, so
// each is a base64-encoded UUID.
func (u *Upload) UploadChunk(ctx context.Context, chunk storage.Chunk, data []byte) error {
	blockID := base64.StdEncoding.EncodeToString([]byte(uuid.NewString()))

	_, err := u.client.blockBlob(u.key).StageBlock(ctx, blockID,
		streaming.NopCloser(bytes.NewReader(data)), nil)
	if err != nil {
		return fmt.Errorf("failed to stage block %d of %s: %w", chunk.Index, u.key, err)
	}

	u.blockIDs = append(u.blockIDs, blockID)
	return nil
}

// Complete commits the staged blocks, materializing the blob.
func (u *Upload) Complete(ctx context.Context) error {
	_, err := u.client.blockBlob(u.key).CommitBlockList(ctx, u.blockIDs, nil)
	if err != nil {
		return fmt.Errorf("failed to commit block list for %s: %w", u.key, err)
	}
	logger.Debug("block upload complete", "key", u.key, "blocks", len(u.blockIDs))
	return nil
}
