package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	tests := []struct {
		name           string
		from, to, size uint64
		want           []BlockRange
	}{
		{"batches", 100, 105, 2, []BlockRange{{100, 101}, {102, 103}, {104, 105}}},
		{"single", 5, 5, 10, []BlockRange{{5, 5}}},
		{"uneven tail", 1, 5, 3, []BlockRange{{1, 3}, {4, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitRange(tt.from, tt.to, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	_, err := SplitRange(10, 9, 1)
	assert.Error(t, err, "inverted range")
	_, err = SplitRange(1, 10, 0)
	assert.Error(t, err, "zero batch size")
}

func TestBlockRangeHalve(t *testing.T) {
	left, right, ok := BlockRange{From: 10, To: 19}.Halve()
	require.True(t, ok)
	assert.Equal(t, BlockRange{From: 10, To: 14}, left)
	assert.Equal(t, BlockRange{From: 15, To: 19}, right)
	assert.Equal(t, left.Len()+right.Len(), uint64(10))

	_, _, ok = BlockRange{From: 7, To: 7}.Halve()
	assert.False(t, ok)
}
