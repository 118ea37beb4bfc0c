package storage

import "fmt"

// Chunk identifies one byte range of a multipart upload. Byte offsets are
// inclusive on both ends, matching the Content-Range convention used by
// resumable uploads.
type Chunk struct {
	Index int64
	First int64
	Last  int64
	Size  int64
}

// ChunkPlan is the derived layout of a multipart upload: how many chunks a
// file splits into and how big the final chunk is.
type ChunkPlan struct {
	FileSize      int64
	ChunkSize     int64
	Count         int64
	LastChunkSize int64
}

// PlanChunks computes the chunk layout for a file of fileSize bytes.
// A chunkSize <= 0 selects the default, and the chunk size is clamped to the
// file size so small files upload in a single part. A file whose size is an
// exact multiple of the chunk size gets a full-size final chunk rather than
// an empty trailing one. Fails with ErrTooManyParts before any byte is read
// when the file needs more than MaxChunks parts.
func PlanChunks(fileSize, chunkSize int64) (ChunkPlan, error) {
	if fileSize < 0 {
		return ChunkPlan{}, fmt.Errorf("%w: negative file size %d", ErrInvalidArgument, fileSize)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize > fileSize {
		chunkSize = fileSize
	}
	if fileSize == 0 {
		return ChunkPlan{FileSize: 0, ChunkSize: 0, Count: 0, LastChunkSize: 0}, nil
	}

	count := fileSize/chunkSize + 1
	last := fileSize % chunkSize
	if last == 0 {
		last = chunkSize
		count--
	}

	if count > MaxChunks {
		return ChunkPlan{}, fmt.Errorf(
			"%w: %d chunks of %d bytes needed for %d bytes (max %d)",
			ErrTooManyParts, count, chunkSize, fileSize, MaxChunks)
	}

	return ChunkPlan{
		FileSize:      fileSize,
		ChunkSize:     chunkSize,
		Count:         count,
		LastChunkSize: last,
	}, nil
}

// Range returns the chunk at index i (0-based).
func (p ChunkPlan) Range(i int64) Chunk {
	size := p.ChunkSize
	if i == p.Count-1 {
		size = p.LastChunkSize
	}
	first := i * p.ChunkSize
	return Chunk{
		Index: i,
		First: first,
		Last:  first + size - 1,
		Size:  size,
	}
}
