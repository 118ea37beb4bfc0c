package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name      string
		fileSize  int64
		chunkSize int64
		count     int64
		last      int64
	}{
		{name: "small file single chunk", fileSize: 100, chunkSize: 1000, count: 1, last: 100},
		{name: "exact multiple", fileSize: 1000, chunkSize: 100, count: 10, last: 100},
		{name: "with remainder", fileSize: 1050, chunkSize: 100, count: 11, last: 50},
		{name: "one byte", fileSize: 1, chunkSize: 100, count: 1, last: 1},
		{name: "default chunk size", fileSize: 10 << 20, chunkSize: 0, count: 2, last: 5 << 20},
		{name: "empty file", fileSize: 0, chunkSize: 100, count: 0, last: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanChunks(tt.fileSize, tt.chunkSize)
			require.NoError(t, err)
			assert.Equal(t, tt.count, plan.Count)
			assert.Equal(t, tt.last, plan.LastChunkSize)

			// Chunk sizes must sum back to the file size.
			var total int64
			for i := int64(0); i < plan.Count; i++ {
				total += plan.Range(i).Size
			}
			assert.Equal(t, tt.fileSize, total)
		})
	}
}

func TestPlanChunksRanges(t *testing.T) {
	plan, err := PlanChunks(1050, 100)
	require.NoError(t, err)

	// Ranges are contiguous, inclusive and start at zero.
	var next int64
	for i := int64(0); i < plan.Count; i++ {
		chunk := plan.Range(i)
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, next, chunk.First)
		assert.Equal(t, chunk.First+chunk.Size-1, chunk.Last)
		next = chunk.Last + 1
	}
	assert.Equal(t, int64(1050), next)

	final := plan.Range(plan.Count - 1)
	assert.Equal(t, int64(50), final.Size)
	assert.Equal(t, int64(1049), final.Last)
}

func TestPlanChunksTooManyParts(t *testing.T) {
	_, err := PlanChunks(MaxChunks*10+1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyParts)
}

func TestPlanChunksNegativeSize(t *testing.T) {
	_, err := PlanChunks(-1, 100)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPlanChunksClampsToFileSize(t *testing.T) {
	plan, err := PlanChunks(10, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, int64(10), plan.ChunkSize)
	assert.Equal(t, int64(1), plan.Count)
}
