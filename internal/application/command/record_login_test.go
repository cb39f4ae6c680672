package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

func loginOn(t *testing.T, e *env, at time.Time) *RecordLoginResult {
	t.Helper()
	result, err := e.login.Handle(context.Background(), RecordLoginCommand{
		UserID: "user-1",
		At:     at,
	})
	require.NoError(t, err)
	return result
}

func TestRecordLogin_FirstLoginStartsStreak(t *testing.T) {
	e := newEnv()

	result := loginOn(t, e, wednesday)

	assert.True(t, result.Counted)
	assert.False(t, result.StreakBroken)
	assert.Equal(t, 1, result.Progress.CurrentStreak)
	assert.Equal(t, 1, result.Progress.BestStreak)
	assert.Equal(t, 1, e.bus.typesSeen()[shared.EventLoginRecorded])
}

func TestRecordLogin_SameDayIsNoOp(t *testing.T) {
	e := newEnv()

	loginOn(t, e, wednesday)
	again := loginOn(t, e, wednesday.Add(6*time.Hour))

	assert.False(t, again.Counted)
	assert.Equal(t, 1, again.Progress.CurrentStreak)
	assert.Equal(t, 1, e.bus.typesSeen()[shared.EventLoginRecorded])
}

func TestRecordLogin_ConsecutiveDaysExtendStreak(t *testing.T) {
	e := newEnv()

	for day := 0; day < 3; day++ {
		loginOn(t, e, wednesday.AddDate(0, 0, day))
	}

	saved, err := e.progressRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.CurrentStreak)
	assert.Equal(t, 3, saved.BestStreak)
}

func TestRecordLogin_MissedDayResetsStreak(t *testing.T) {
	e := newEnv()

	loginOn(t, e, wednesday)
	loginOn(t, e, wednesday.AddDate(0, 0, 1))
	// Skip two days.
	result := loginOn(t, e, wednesday.AddDate(0, 0, 4))

	assert.True(t, result.Counted)
	assert.True(t, result.StreakBroken)
	assert.Equal(t, 2, result.PreviousStreak)
	assert.Equal(t, 1, result.Progress.CurrentStreak)
	// Best streak survives the reset.
	assert.Equal(t, 2, result.Progress.BestStreak)
	assert.Equal(t, 1, e.bus.typesSeen()[shared.EventStreakBroken])
}

func TestRecordLogin_MidnightBoundaryInSaoPaulo(t *testing.T) {
	e := newEnv()

	lateNight := time.Date(2026, 3, 4, 23, 50, 0, 0, timeutil.SaoPauloTZ)
	earlyMorning := time.Date(2026, 3, 5, 0, 10, 0, 0, timeutil.SaoPauloTZ)

	loginOn(t, e, lateNight)
	result := loginOn(t, e, earlyMorning)

	// Twenty minutes apart but across local midnight: consecutive days.
	assert.True(t, result.Counted)
	assert.Equal(t, 2, result.Progress.CurrentStreak)
}

func TestRecordLogin_SevenDayStreakUnlocksAchievement(t *testing.T) {
	e := newEnv()

	var last *RecordLoginResult
	for day := 0; day < 7; day++ {
		last = loginOn(t, e, wednesday.AddDate(0, 0, day))
	}

	require.True(t, last.Achievements.HasNewAchievements())
	require.Len(t, last.Achievements.Unlocked, 1)
	assert.Equal(t, achievement.AchievementStreak7, last.Achievements.Unlocked[0].ID)
	assert.Equal(t, shared.XP(40), last.Progress.TotalPoints)

	// Breaking and rebuilding does not grant it twice: best streak keeps it unlocked.
	broken := loginOn(t, e, wednesday.AddDate(0, 0, 9))
	assert.False(t, broken.Achievements.HasNewAchievements())
}
