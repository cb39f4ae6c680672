package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

func rankedCache(n int) *fakeCache {
	cache := &fakeCache{}
	for i := 1; i <= n; i++ {
		cache.entries = append(cache.entries, &leaderboard.Entry{
			Rank:        shared.Rank(i),
			UserID:      shared.UserID(fmt.Sprintf("user-%d", i)),
			DisplayName: fmt.Sprintf("Jogador %d", i),
			TotalPoints: shared.XP((n - i + 1) * 100),
			Tier:        shared.TierBronze,
		})
	}
	return cache
}

func TestGetLeaderboard_FirstPageDefaults(t *testing.T) {
	handler := NewGetLeaderboardHandler(rankedCache(25))

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)

	assert.Len(t, result.Entries, 20)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 25, result.TotalCount)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, "user-1", result.Entries[0].UserID)
}

func TestGetLeaderboard_SecondPage(t *testing.T) {
	handler := NewGetLeaderboardHandler(rankedCache(25))

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{Page: 2, PageSize: 20})
	require.NoError(t, err)

	assert.Len(t, result.Entries, 5)
	assert.Equal(t, 21, result.Entries[0].Rank)
}

func TestGetLeaderboard_AroundUser(t *testing.T) {
	handler := NewGetLeaderboardHandler(rankedCache(25))

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{
		AroundUserID: "user-10",
		PageSize:     6,
	})
	require.NoError(t, err)

	// Window of 3 on each side plus the user itself.
	assert.Len(t, result.Entries, 7)
	assert.Equal(t, 7, result.Entries[0].Rank)
	assert.Equal(t, 13, result.Entries[len(result.Entries)-1].Rank)
	assert.Zero(t, result.Page)
}

func TestGetLeaderboard_RequesterRank(t *testing.T) {
	handler := NewGetLeaderboardHandler(rankedCache(25))

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{ForUserID: "user-23"})
	require.NoError(t, err)
	assert.Equal(t, 23, result.RequesterRank)

	// Unranked requester is not an error.
	result, err = handler.Handle(context.Background(), GetLeaderboardQuery{ForUserID: "ghost"})
	require.NoError(t, err)
	assert.Zero(t, result.RequesterRank)
}

func TestGetLeaderboard_PageSizeClamped(t *testing.T) {
	handler := NewGetLeaderboardHandler(rankedCache(150))

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 100)
}

func TestGetLeaderboard_NegativePageRejected(t *testing.T) {
	handler := NewGetLeaderboardHandler(rankedCache(5))

	_, err := handler.Handle(context.Background(), GetLeaderboardQuery{Page: -1})
	assert.Error(t, err)
}
