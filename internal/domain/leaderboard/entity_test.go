package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

func buildRanking(t *testing.T, points map[shared.UserID]shared.XP) *Ranking {
	t.Helper()
	ranking := NewRanking()
	for id, pts := range points {
		entry, err := NewEntry(id, string(id), pts, 1, shared.TierBronze)
		require.NoError(t, err)
		require.NoError(t, ranking.Add(entry))
	}
	ranking.Sort()
	return ranking
}

func TestRanking_SortAssignsRanks(t *testing.T) {
	ranking := buildRanking(t, map[shared.UserID]shared.XP{
		"alice": 3000,
		"bob":   1500,
		"carol": 4500,
	})

	top := ranking.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, shared.UserID("carol"), top[0].UserID)
	assert.Equal(t, shared.Rank(1), top[0].Rank)
	assert.Equal(t, shared.UserID("alice"), top[1].UserID)
	assert.Equal(t, shared.Rank(2), top[1].Rank)
	assert.Equal(t, shared.UserID("bob"), top[2].UserID)
	assert.Equal(t, shared.Rank(3), top[2].Rank)
}

func TestRanking_TiedPointsShareRank(t *testing.T) {
	ranking := buildRanking(t, map[shared.UserID]shared.XP{
		"alice": 2000,
		"bob":   2000,
		"carol": 1000,
	})

	assert.Equal(t, shared.Rank(1), ranking.GetByID("alice").Rank)
	assert.Equal(t, shared.Rank(1), ranking.GetByID("bob").Rank)
	// The rank after a tie accounts for the tied entries.
	assert.Equal(t, shared.Rank(3), ranking.GetByID("carol").Rank)
}

func TestRanking_DuplicateUserRejected(t *testing.T) {
	ranking := NewRanking()

	entry, err := NewEntry("alice", "alice", 100, 0, shared.TierBronze)
	require.NoError(t, err)
	require.NoError(t, ranking.Add(entry))

	again, err := NewEntry("alice", "alice", 200, 0, shared.TierBronze)
	require.NoError(t, err)
	assert.ErrorIs(t, ranking.Add(again), shared.ErrAlreadyExists)
}

func TestRanking_ApplyPreviousRanks(t *testing.T) {
	ranking := buildRanking(t, map[shared.UserID]shared.XP{
		"alice": 3000,
		"bob":   2000,
		"carol": 1000,
	})

	ranking.ApplyPreviousRanks(map[shared.UserID]shared.Rank{
		"alice": 3, // climbed from 3rd to 1st
		"bob":   1, // dropped from 1st to 2nd
	})

	assert.Equal(t, RankChange(2), ranking.GetByID("alice").RankChange)
	assert.Equal(t, RankChange(-1), ranking.GetByID("bob").RankChange)
	// New users show no movement.
	assert.Equal(t, RankChange(0), ranking.GetByID("carol").RankChange)
}

func TestRanking_Page(t *testing.T) {
	ranking := buildRanking(t, map[shared.UserID]shared.XP{
		"u1": 500, "u2": 400, "u3": 300, "u4": 200, "u5": 100,
	})

	page1 := ranking.Page(1, 2)
	require.Len(t, page1, 2)
	assert.Equal(t, shared.UserID("u1"), page1[0].UserID)

	page3 := ranking.Page(3, 2)
	require.Len(t, page3, 1)
	assert.Equal(t, shared.UserID("u5"), page3[0].UserID)

	assert.Nil(t, ranking.Page(4, 2))
	assert.Nil(t, ranking.Page(0, 2))
}

func TestRanking_Neighbors(t *testing.T) {
	ranking := buildRanking(t, map[shared.UserID]shared.XP{
		"u1": 500, "u2": 400, "u3": 300, "u4": 200, "u5": 100,
	})

	window := ranking.Neighbors("u3", 1)
	require.Len(t, window, 3)
	assert.Equal(t, shared.UserID("u2"), window[0].UserID)
	assert.Equal(t, shared.UserID("u3"), window[1].UserID)
	assert.Equal(t, shared.UserID("u4"), window[2].UserID)

	// Window clamps at the edges.
	topWindow := ranking.Neighbors("u1", 2)
	require.Len(t, topWindow, 3)
	assert.Equal(t, shared.UserID("u1"), topWindow[0].UserID)

	assert.Nil(t, ranking.Neighbors("ghost", 1))
}

func TestEntry_PointsGap(t *testing.T) {
	a, err := NewEntry("alice", "alice", 3000, 2, shared.TierGold)
	require.NoError(t, err)
	b, err := NewEntry("bob", "bob", 1800, 1, shared.TierSilver)
	require.NoError(t, err)

	assert.Equal(t, shared.XP(1200), a.PointsGap(b))
	assert.Equal(t, shared.XP(1200), b.PointsGap(a))
	assert.Equal(t, shared.XP(0), a.PointsGap(nil))
}

func TestRankChange_String(t *testing.T) {
	assert.Equal(t, "+3", RankChange(3).String())
	assert.Equal(t, "-2", RankChange(-2).String())
	assert.Equal(t, "=", RankChange(0).String())
}
