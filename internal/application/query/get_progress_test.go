package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/application/command"
	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/keyedmutex"
)

func newGetProgressHandler(repo *fakeProgressRepo, cache leaderboard.Cache) *GetProgressHandler {
	register := command.NewRegisterUserHandler(repo, nil, keyedmutex.New())
	return NewGetProgressHandler(repo, register, cache)
}

func TestGetProgress_UnknownUserGetsFreshRecord(t *testing.T) {
	repo := newFakeProgressRepo()
	handler := newGetProgressHandler(repo, nil)

	dto, err := handler.Handle(context.Background(), GetProgressQuery{
		UserID:      "user-1",
		DisplayName: "Rafael",
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", dto.UserID)
	assert.Equal(t, "Rafael", dto.DisplayName)
	assert.Zero(t, dto.Level)
	assert.Zero(t, dto.XP)
	assert.Equal(t, 1000, dto.XPToNextLevel)
	assert.Zero(t, dto.TotalPoints)
	assert.Equal(t, "bronze", dto.Tier)
	assert.Zero(t, dto.Rank)

	// The record was persisted: a second read returns the same user.
	_, err = repo.GetByUserID(context.Background(), "user-1")
	assert.NoError(t, err)
}

func TestGetProgress_ReflectsStoredState(t *testing.T) {
	repo := newFakeProgressRepo()
	seedProgress(t, repo, "user-1", func(p *progression.UserProgress) {
		p.Level = 3
		p.XP = 1200
		p.XPToNextLevel = progression.LevelThreshold(3)
		p.TotalPoints = 7200
		p.SetupScore = 1050
		p.CurrentStreak = 4
		p.BestStreak = 9
	})

	handler := newGetProgressHandler(repo, nil)
	dto, err := handler.Handle(context.Background(), GetProgressQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 3, dto.Level)
	assert.Equal(t, 1200, dto.XP)
	assert.Equal(t, 4000, dto.XPToNextLevel)
	assert.Equal(t, 30, dto.ProgressPercent)
	assert.Equal(t, 7200, dto.TotalPoints)
	assert.Equal(t, "silver", dto.Tier)
	assert.Equal(t, "Prata", dto.TierDisplayName)
	assert.Equal(t, 4, dto.CurrentStreak)
	assert.Equal(t, 9, dto.BestStreak)
}

func TestGetProgress_IncludesLeaderboardRank(t *testing.T) {
	repo := newFakeProgressRepo()
	seedProgress(t, repo, "user-1", nil)

	cache := &fakeCache{entries: []*leaderboard.Entry{
		{Rank: 1, UserID: "user-9", DisplayName: "Top", TotalPoints: 9000, Tier: shared.TierGold},
		{Rank: 2, UserID: "user-1", DisplayName: "Rafael", TotalPoints: 100, Tier: shared.TierBronze},
	}}

	handler := newGetProgressHandler(repo, cache)
	dto, err := handler.Handle(context.Background(), GetProgressQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, dto.Rank)
}

func TestGetProgress_InvalidUserID(t *testing.T) {
	handler := newGetProgressHandler(newFakeProgressRepo(), nil)

	_, err := handler.Handle(context.Background(), GetProgressQuery{UserID: ""})
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)
}
