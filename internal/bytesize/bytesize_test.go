package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{"5MiB", 5 * MiB},
		{"5mib", 5 * MiB},
		{"1Gi", GiB},
		{"100MB", 100 * MB},
		{"512", 512},
		{"2.5KiB", ByteSize(2.5 * 1024)},
		{" 10 kb ", 10 * KB},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, "Parse(%q)", tt.in)
		assert.Equal(t, tt.want, got, "Parse(%q)", tt.in)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "MiB", "5XB", "-5MiB", "five"} {
		_, err := Parse(in)
		assert.Error(t, err, "Parse(%q)", in)
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("8MiB")))
	assert.Equal(t, int64(8<<20), b.Int64())
}

func TestString(t *testing.T) {
	assert.Equal(t, "5MiB", (5 * MiB).String())
	assert.Equal(t, "2GiB", (2 * GiB).String())
	assert.Equal(t, "100B", ByteSize(100).String())
}
