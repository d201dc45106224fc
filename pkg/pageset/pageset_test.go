package pageset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	pages, err := Range(10, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, Pages{2, 3, 4, 5}, pages)
}

func TestRange_FullDocument(t *testing.T) {
	pages, err := Range(3, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, Pages{1, 2, 3}, pages)
}

func TestRange_Cardinality(t *testing.T) {
	for _, tc := range []struct{ total, start, end int }{
		{1, 1, 1},
		{10, 1, 10},
		{100, 37, 42},
	} {
		pages, err := Range(tc.total, tc.start, tc.end)
		require.NoError(t, err)
		assert.Len(t, pages, tc.end-tc.start+1)
		for i, p := range pages {
			assert.Equal(t, tc.start+i, p)
			assert.GreaterOrEqual(t, p, 1)
			assert.LessOrEqual(t, p, tc.total)
		}
	}
}

func TestRange_Invalid(t *testing.T) {
	tests := []struct {
		name              string
		total, start, end int
	}{
		{"start below one", 10, 0, 5},
		{"end beyond total", 10, 1, 11},
		{"descending", 10, 5, 2},
		{"empty document", 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Range(tt.total, tt.start, tt.end)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestEveryK(t *testing.T) {
	chunks, err := EveryK(10, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, Pages{1, 2, 3}, chunks[0])
	assert.Equal(t, Pages{4, 5, 6}, chunks[1])
	assert.Equal(t, Pages{7, 8, 9}, chunks[2])
	assert.Equal(t, Pages{10}, chunks[3])
}

func TestEveryK_ChunkShape(t *testing.T) {
	// ceil(n/step) chunks, all but the last of size step, concatenation = [1..n].
	for _, tc := range []struct{ total, step int }{
		{1, 1},
		{10, 1},
		{10, 10},
		{10, 12},
		{25, 4},
	} {
		chunks, err := EveryK(tc.total, tc.step)
		require.NoError(t, err)

		wantChunks := (tc.total + tc.step - 1) / tc.step
		require.Len(t, chunks, wantChunks)

		var flat Pages
		for i, chunk := range chunks {
			if i < len(chunks)-1 {
				assert.Len(t, chunk, tc.step)
			}
			flat = append(flat, chunk...)
		}

		require.Len(t, flat, tc.total)
		for i, p := range flat {
			assert.Equal(t, i+1, p)
		}
	}
}

func TestEveryK_InvalidStep(t *testing.T) {
	_, err := EveryK(10, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRemove(t *testing.T) {
	pages, err := Remove(5, Pages{2, 4})
	require.NoError(t, err)
	assert.Equal(t, Pages{1, 3, 5}, pages)
}

func TestRemove_Partition(t *testing.T) {
	// Removed set and result partition [1..n]: each page appears exactly once
	// across the two.
	drop := Pages{3, 1, 3, 7} // duplicates and order irrelevant
	pages, err := Remove(8, drop)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, p := range pages {
		assert.False(t, seen[p], "duplicate page %d in result", p)
		seen[p] = true
	}
	for _, p := range drop {
		assert.False(t, seen[p], "removed page %d present in result", p)
	}
	assert.Len(t, pages, 8-3)
}

func TestRemove_AllPages(t *testing.T) {
	_, err := Remove(3, Pages{1, 2, 3})
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestRemove_IgnoresOutOfRange(t *testing.T) {
	pages, err := Remove(3, Pages{99})
	require.NoError(t, err)
	assert.Equal(t, Pages{1, 2, 3}, pages)
}

func TestKeep_VerbatimOrder(t *testing.T) {
	pages, err := Keep(10, Pages{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, Pages{3, 1, 2}, pages)
}

func TestKeep_DuplicatesPreserved(t *testing.T) {
	pages, err := Keep(10, Pages{2, 2, 5})
	require.NoError(t, err)
	assert.Equal(t, Pages{2, 2, 5}, pages)
}

func TestKeep_DropsOutOfRange(t *testing.T) {
	pages, err := Keep(3, Pages{1, 99, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, Pages{1, 2}, pages)
}

func TestKeep_NothingSurvives(t *testing.T) {
	_, err := Keep(3, Pages{4, 5})
	assert.ErrorIs(t, err, ErrEmptyResult)
}
