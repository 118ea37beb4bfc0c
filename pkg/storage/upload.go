package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mlvault/artifactfs/internal/logger"
)

// UploadFileInChunks reads localPath chunk by chunk and feeds the chunks to
// the uploader strictly in increasing index order, then completes the
// session. Any read or upload error aborts the remaining loop; the session
// is abandoned without cleanup (orphaned-session GC is a backend lifecycle
// concern).
func UploadFileInChunks(ctx context.Context, up Uploader, localPath string, chunkSize int64) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	plan, err := PlanChunks(fi.Size(), chunkSize)
	if err != nil {
		return err
	}

	for i := int64(0); i < plan.Count; i++ {
		chunk := plan.Range(i)

		buf := make([]byte, chunk.Size)
		if _, err := io.ReadFull(io.NewSectionReader(f, chunk.First, chunk.Size), buf); err != nil {
			return fmt.Errorf("failed to read chunk %d of %s: %w", chunk.Index, localPath, err)
		}

		if err := up.UploadChunk(ctx, chunk, buf); err != nil {
			return fmt.Errorf("failed to upload chunk %d of %s: %w", chunk.Index, localPath, err)
		}

		logger.Debug("chunk uploaded",
			"file", localPath,
			"chunk", chunk.Index+1,
			"chunks", plan.Count,
			"bytes", chunk.Size,
			"session", up.SessionID())
	}

	if err := up.Complete(ctx); err != nil {
		return fmt.Errorf("failed to complete upload of %s: %w", localPath, err)
	}

	return nil
}
