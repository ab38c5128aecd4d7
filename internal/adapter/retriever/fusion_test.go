package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hybridrag/internal/domain"
)

func TestFusePureDense(t *testing.T) {
	dense := []domain.Candidate{
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "b", Score: 0.7},
		{ChunkID: "c", Score: 0.2},
	}
	sparse := []domain.Candidate{
		{ChunkID: "c", Score: 12.0},
		{ChunkID: "b", Score: 3.0},
	}

	fused := Fuse(dense, sparse, 1.0)

	require.Len(t, fused, 3)
	assert.Equal(t, "a", fused[0].ChunkID)
	assert.Equal(t, "b", fused[1].ChunkID)
	assert.Equal(t, "c", fused[2].ChunkID)
	assert.InDelta(t, 0.9, fused[0].Score, 1e-9)
}

func TestFusePureSparse(t *testing.T) {
	dense := []domain.Candidate{
		{ChunkID: "a", Score: 0.9},
	}
	sparse := []domain.Candidate{
		{ChunkID: "c", Score: 12.0},
		{ChunkID: "b", Score: 3.0},
	}

	fused := Fuse(dense, sparse, 0.0)

	require.Len(t, fused, 3)
	assert.Equal(t, "c", fused[0].ChunkID)
	assert.Equal(t, 1.0, fused[0].Score)
	// min-max sends the lowest sparse score to 0, tying it with the
	// dense-only chunk; the tie is broken by ID. Neither is dropped.
	assert.Equal(t, "a", fused[1].ChunkID)
	assert.Equal(t, "b", fused[2].ChunkID)
	assert.Equal(t, 0.0, fused[1].Score)
	assert.Equal(t, 0.0, fused[2].Score)
}

func TestFuseUnionKeepsSingleSideHits(t *testing.T) {
	dense := []domain.Candidate{
		{ChunkID: "dense-only", Score: 0.8},
		{ChunkID: "both", Score: 0.5},
	}
	sparse := []domain.Candidate{
		{ChunkID: "both", Score: 5.0},
		{ChunkID: "sparse-only", Score: 2.0},
	}

	fused := Fuse(dense, sparse, 0.5)

	require.Len(t, fused, 3)
	ids := make(map[string]float64, len(fused))
	for _, c := range fused {
		ids[c.ChunkID] = c.Score
	}
	assert.Contains(t, ids, "dense-only")
	assert.Contains(t, ids, "sparse-only")
	// both: 0.5*0.5 + 0.5*1.0 (sparse max normalizes to 1)
	assert.InDelta(t, 0.75, ids["both"], 1e-9)
	assert.InDelta(t, 0.4, ids["dense-only"], 1e-9)
	assert.InDelta(t, 0.0, ids["sparse-only"], 1e-9)
}

func TestFuseTieBreakByChunkID(t *testing.T) {
	dense := []domain.Candidate{
		{ChunkID: "zeta", Score: 0.5},
		{ChunkID: "alpha", Score: 0.5},
	}

	fused := Fuse(dense, nil, 1.0)

	require.Len(t, fused, 2)
	assert.Equal(t, "alpha", fused[0].ChunkID)
	assert.Equal(t, "zeta", fused[1].ChunkID)
}

func TestFuseClampsAlpha(t *testing.T) {
	dense := []domain.Candidate{{ChunkID: "a", Score: 0.5}}

	fused := Fuse(dense, nil, 3.0)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.5, fused[0].Score, 1e-9)

	fused = Fuse(dense, nil, -1.0)
	require.Len(t, fused, 1)
	assert.Equal(t, 0.0, fused[0].Score)
}

func TestFuseEmptyInputs(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, 0.5))
}

func TestNormalizeMinMax(t *testing.T) {
	in := []domain.Candidate{
		{ChunkID: "a", Score: 10},
		{ChunkID: "b", Score: 5},
		{ChunkID: "c", Score: 0},
	}

	out := NormalizeMinMax(in)

	require.Len(t, out, 3)
	assert.Equal(t, 1.0, out[0].Score)
	assert.InDelta(t, 0.5, out[1].Score, 1e-9)
	assert.Equal(t, 0.0, out[2].Score)

	// monotonic: order by score is unchanged
	assert.True(t, out[0].Score >= out[1].Score && out[1].Score >= out[2].Score)
}

func TestNormalizeMinMaxAllEqual(t *testing.T) {
	in := []domain.Candidate{
		{ChunkID: "a", Score: 7},
		{ChunkID: "b", Score: 7},
	}

	out := NormalizeMinMax(in)

	require.Len(t, out, 2)
	for _, c := range out {
		assert.Equal(t, 1.0, c.Score)
	}
}

func TestNormalizeMinMaxEmpty(t *testing.T) {
	assert.Nil(t, NormalizeMinMax(nil))
}
