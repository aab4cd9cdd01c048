package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shareByID(shares []RewardShare, id uint32) *RewardShare {
	for i := range shares {
		if shares[i].ParticipantID == id {
			return &shares[i]
		}
	}
	return nil
}

func TestComputeShares_Proportional(t *testing.T) {
	shares := ComputeShares(map[uint32]int64{1: 60, 2: 50}, 10)
	require.Len(t, shares, 2)

	a := shareByID(shares, 1)
	b := shareByID(shares, 2)
	require.NotNil(t, a)
	require.NotNil(t, b)

	assert.InDelta(t, 54.5, a.Percent, 0.1)
	assert.InDelta(t, 45.5, b.Percent, 0.1)
	assert.Equal(t, int64(110), a.Amount+b.Amount)
	assert.Greater(t, a.Amount, b.Amount)
}

func TestComputeShares_AssistFloor(t *testing.T) {
	// 2% contributor raised to the 10% floor; the rest rescaled.
	shares := ComputeShares(map[uint32]int64{1: 980, 2: 20}, 10)
	require.Len(t, shares, 2)

	low := shareByID(shares, 2)
	high := shareByID(shares, 1)
	assert.InDelta(t, 10.0, low.Percent, 0.001)
	assert.InDelta(t, 90.0, high.Percent, 0.001)
	assert.Equal(t, int64(1000), low.Amount+high.Amount)
}

func TestComputeShares_FloorNeverInvertsOrdering(t *testing.T) {
	// Flooring the 1-damage assist rescales the two 10-damage
	// contributors under the floor; they must be re-floored, not left
	// below the assist they out-damaged.
	shares := ComputeShares(map[uint32]int64{1: 10, 2: 10, 3: 79, 4: 1}, 10)
	require.Len(t, shares, 4)

	top := shareByID(shares, 3)
	assert.InDelta(t, 70.0, top.Percent, 0.001)
	for _, id := range []uint32{1, 2, 4} {
		s := shareByID(shares, id)
		require.NotNil(t, s)
		assert.InDelta(t, 10.0, s.Percent, 0.001, "participant %d", id)
	}

	var pct float64
	var total int64
	for _, s := range shares {
		pct += s.Percent
		total += s.Amount
		assert.GreaterOrEqual(t, s.Percent, 10.0-0.001)
	}
	assert.InDelta(t, 100.0, pct, 0.01)
	assert.Equal(t, int64(100), total)
}

func TestComputeShares_FloorCascade(t *testing.T) {
	// Flooring the 1% assist pushes the 10% contributor under the
	// floor on the first rescale; a second redistribution round must
	// pick it up.
	shares := ComputeShares(map[uint32]int64{1: 46, 2: 30, 3: 13, 4: 10, 5: 1}, 10)
	require.Len(t, shares, 5)

	var pct float64
	for _, s := range shares {
		pct += s.Percent
		assert.GreaterOrEqual(t, s.Percent, 10.0-0.001)
	}
	assert.InDelta(t, 100.0, pct, 0.01)
	assert.InDelta(t, 10.0, shareByID(shares, 4).Percent, 0.001)
	assert.InDelta(t, 10.0, shareByID(shares, 5).Percent, 0.001)
	assert.InDelta(t, 41.35, shareByID(shares, 1).Percent, 0.01)
}

func TestComputeShares_FloorOverflowEqualSplit(t *testing.T) {
	// 12 participants × 10% floor > 100% → equal shares.
	contrib := make(map[uint32]int64, 12)
	for id := uint32(1); id <= 12; id++ {
		contrib[id] = int64(id * 10)
	}
	shares := ComputeShares(contrib, 10)
	require.Len(t, shares, 12)

	var total int64
	for _, s := range shares {
		assert.InDelta(t, 100.0/12.0, s.Percent, 0.001)
		total += s.Amount
	}
	assert.Equal(t, int64(780), total)
}

func TestComputeShares_AmountsSumExactly(t *testing.T) {
	tests := []struct {
		name    string
		contrib map[uint32]int64
	}{
		{"three way", map[uint32]int64{1: 1, 2: 1, 3: 1}},
		{"awkward remainder", map[uint32]int64{1: 33, 2: 33, 3: 34}},
		{"solo", map[uint32]int64{7: 12345}},
		{"tiny assists", map[uint32]int64{1: 997, 2: 1, 3: 1, 4: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want int64
			for _, d := range tt.contrib {
				want += d
			}
			shares := ComputeShares(tt.contrib, 10)
			var got int64
			var pct float64
			for _, s := range shares {
				got += s.Amount
				pct += s.Percent
			}
			assert.Equal(t, want, got, "amounts must sum to total damage")
			assert.InDelta(t, 100.0, pct, 0.01, "percents must sum to 100")
		})
	}
}

func TestComputeShares_Empty(t *testing.T) {
	assert.Nil(t, ComputeShares(nil, 10))
	assert.Nil(t, ComputeShares(map[uint32]int64{}, 10))
}

func TestComputeShares_DeterministicOrder(t *testing.T) {
	shares := ComputeShares(map[uint32]int64{3: 50, 1: 50, 2: 80}, 0)
	require.Len(t, shares, 3)
	assert.Equal(t, uint32(2), shares[0].ParticipantID)
	assert.Equal(t, uint32(1), shares[1].ParticipantID)
	assert.Equal(t, uint32(3), shares[2].ParticipantID)
}

type stubGroups map[uint32][]uint32

func (s stubGroups) GroupMembers(id uint32) []uint32 { return s[id] }

func TestCreditList_FoldsGroupMembers(t *testing.T) {
	shares := []RewardShare{{ParticipantID: 1}, {ParticipantID: 5}}
	groups := stubGroups{1: {1, 2, 3}}

	got := creditList(shares, groups)
	assert.Equal(t, []uint32{1, 2, 3, 5}, got)
}

func TestCreditList_NilGroups(t *testing.T) {
	shares := []RewardShare{{ParticipantID: 9}, {ParticipantID: 4}}
	got := creditList(shares, nil)
	assert.Equal(t, []uint32{4, 9}, got)
}
