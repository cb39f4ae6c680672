package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
)

func TestListAchievements_UnknownUserSeesLockedCatalog(t *testing.T) {
	handler := NewListAchievementsHandler(achievement.NewCatalog(), newFakeProgressRepo())

	result, err := handler.Handle(context.Background(), ListAchievementsQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 8, result.TotalCount)
	assert.Len(t, result.Achievements, 8)
	assert.Zero(t, result.UnlockedCount)
	for _, dto := range result.Achievements {
		assert.False(t, dto.Unlocked)
		assert.Nil(t, dto.UnlockedAt)
	}
}

func TestListAchievements_MarksUnlocked(t *testing.T) {
	repo := newFakeProgressRepo()
	unlockedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	seedProgress(t, repo, "user-1", func(p *progression.UserProgress) {
		p.UnlockAchievement(achievement.AchievementFirstMission, unlockedAt)
		p.UnlockAchievement(achievement.AchievementSetupMaster, unlockedAt.Add(time.Hour))
	})

	handler := NewListAchievementsHandler(achievement.NewCatalog(), repo)
	result, err := handler.Handle(context.Background(), ListAchievementsQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.UnlockedCount)
	for _, dto := range result.Achievements {
		switch dto.ID {
		case achievement.AchievementFirstMission.String():
			assert.True(t, dto.Unlocked)
			require.NotNil(t, dto.UnlockedAt)
			assert.Equal(t, unlockedAt, *dto.UnlockedAt)
		case achievement.AchievementSetupMaster.String():
			assert.True(t, dto.Unlocked)
		default:
			assert.False(t, dto.Unlocked)
		}
	}
}

func TestListAchievements_OnlyUnlockedFilter(t *testing.T) {
	repo := newFakeProgressRepo()
	seedProgress(t, repo, "user-1", func(p *progression.UserProgress) {
		p.UnlockAchievement(achievement.AchievementFirstMission, time.Now().UTC())
	})

	handler := NewListAchievementsHandler(achievement.NewCatalog(), repo)
	result, err := handler.Handle(context.Background(), ListAchievementsQuery{
		UserID:       "user-1",
		OnlyUnlocked: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Achievements, 1)
	assert.Equal(t, achievement.AchievementFirstMission.String(), result.Achievements[0].ID)
	assert.Equal(t, 8, result.TotalCount)
}
