package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

var wednesday = time.Date(2026, 3, 4, 15, 0, 0, 0, timeutil.SaoPauloTZ)

func TestCompleteMission_AwardsXPAndFirstMissionAchievement(t *testing.T) {
	e := newEnv()

	result, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyBenchmark.String(),
		At:        wednesday,
	})
	require.NoError(t, err)

	assert.Equal(t, shared.XP(50), result.XPAwarded)
	assert.Equal(t, 0, result.LevelUps)

	// First completion unlocks "Primeira Missão" and its bonus.
	require.NotNil(t, result.Achievements)
	require.Len(t, result.Achievements.Unlocked, 1)
	assert.Equal(t, achievement.AchievementFirstMission, result.Achievements.Unlocked[0].ID)

	// 50 mission XP + 30 achievement bonus.
	assert.Equal(t, shared.XP(80), result.Progress.TotalPoints)
	assert.Equal(t, shared.XP(80), result.Progress.XP)

	saved, err := e.progressRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(80), saved.TotalPoints)
	assert.True(t, saved.HasAchievement(achievement.AchievementFirstMission))

	seen := e.bus.typesSeen()
	assert.Equal(t, 1, seen[shared.EventMissionCompleted])
	assert.Equal(t, 1, seen[shared.EventAchievementUnlocked])
	assert.Equal(t, 1, seen[shared.EventUserRegistered])
}

func TestCompleteMission_SamePeriodIsRejected(t *testing.T) {
	e := newEnv()
	cmd := CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyCleanup.String(),
		At:        wednesday,
	}

	_, err := e.completeMission.Handle(context.Background(), cmd)
	require.NoError(t, err)

	_, err = e.completeMission.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrAlreadyCompleted)
}

func TestCompleteMission_NextDayIsAvailableAgain(t *testing.T) {
	e := newEnv()

	_, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyCleanup.String(),
		At:        wednesday,
	})
	require.NoError(t, err)

	e.now = wednesday.AddDate(0, 0, 1)
	result, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyCleanup.String(),
		At:        e.now,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.XP(75), result.XPAwarded)
}

func TestCompleteMission_UnknownMission(t *testing.T) {
	e := newEnv()

	_, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: "mission_that_does_not_exist",
		At:        wednesday,
	})
	assert.ErrorIs(t, err, shared.ErrUnknownMission)
}

func TestCompleteMission_ProofGatedMissionIsRefused(t *testing.T) {
	e := newEnv()

	_, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		At:        wednesday,
	})
	assert.ErrorIs(t, err, shared.ErrProofRequired)

	// Nothing was recorded and no XP moved.
	count, err := e.completionRepo.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCompleteMission_LevelUpFromAccumulatedRewards(t *testing.T) {
	e := newEnv()

	// Three daily missions a day for five days: 225 XP per day.
	day := wednesday
	missions := []shared.MissionID{
		mission.MissionDailyBenchmark,
		mission.MissionDailyDriverUpdate,
		mission.MissionDailyCleanup,
	}
	for i := 0; i < 5; i++ {
		e.now = day
		for _, id := range missions {
			_, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
				UserID:    "grinder",
				MissionID: id.String(),
				At:        day,
			})
			require.NoError(t, err)
		}
		day = day.AddDate(0, 0, 1)
	}

	saved, err := e.progressRepo.GetByUserID(context.Background(), "grinder")
	require.NoError(t, err)

	// 1125 XP from 15 missions plus 120 XP in achievement bonuses
	// (first mission 30, mission master 50, UPGRD Pro 40).
	assert.Equal(t, shared.XP(1245), saved.TotalPoints)
	assert.Equal(t, shared.Level(1), saved.Level)
	assert.Equal(t, shared.XP(245), saved.XP)
	assert.Equal(t, shared.XP(2000), saved.XPToNextLevel)
	assert.True(t, saved.HasAchievement(achievement.AchievementMissionMaster))
	assert.True(t, saved.HasAchievement(achievement.AchievementUpgrdPro))
}

func TestCompleteMission_StaleTimestampIsRejected(t *testing.T) {
	e := newEnv()

	// Tuesday's window already closed; the completion must not be
	// backdated into it.
	_, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyBenchmark.String(),
		At:        wednesday.AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, shared.ErrMissionExpired)

	count, repoErr := e.completionRepo.CountByUser(context.Background(), "user-1")
	require.NoError(t, repoErr)
	assert.Zero(t, count)
}

func TestCompleteMission_ConcurrentDuplicatesCollapseToOne(t *testing.T) {
	e := newEnv()
	const attempts = 8

	cmd := CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyBenchmark.String(),
		At:        wednesday,
	}

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.completeMission.Handle(context.Background(), cmd)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrAlreadyCompleted):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, duplicates)

	count, err := e.completionRepo.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The reward and the first-mission bonus landed exactly once.
	saved, err := e.progressRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(80), saved.TotalPoints)
}

func TestCompleteMission_OptimisticLockLossIsRetried(t *testing.T) {
	e := newEnv()
	// A writer on another instance bumps the version between load and
	// update; the first persist attempt loses the race.
	flaky := &flakyProgressRepo{
		memProgressRepo: e.progressRepo,
		updateFailures:  1,
		updateErr:       shared.ErrOptimisticLock,
	}
	handler := NewCompleteMissionHandler(
		flaky, e.completionRepo, e.catalog, e.flow, nil, e.bus, e.locks, e.log)
	handler.now = e.clock

	result, err := handler.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyBenchmark.String(),
		At:        wednesday,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.XP(50), result.XPAwarded)

	count, err := e.completionRepo.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	saved, err := e.progressRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(80), saved.TotalPoints)
}

func TestCompleteMission_AwardFailureRollsBackCompletion(t *testing.T) {
	e := newEnv()
	// Both the first attempt and the re-based retry lose the race.
	flaky := &flakyProgressRepo{
		memProgressRepo: e.progressRepo,
		updateFailures:  2,
		updateErr:       shared.ErrOptimisticLock,
	}
	handler := NewCompleteMissionHandler(
		flaky, e.completionRepo, e.catalog, e.flow, nil, e.bus, e.locks, e.log)
	handler.now = e.clock

	cmd := CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyBenchmark.String(),
		At:        wednesday,
	}
	_, err := handler.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrOptimisticLock)

	// The completion row must not survive a failed award: otherwise the
	// user is refused with "already completed" and never gets the XP.
	count, repoErr := e.completionRepo.CountByUser(context.Background(), "user-1")
	require.NoError(t, repoErr)
	assert.Zero(t, count)

	// The very same command succeeds once persistence recovers.
	result, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, shared.XP(50), result.XPAwarded)

	count, repoErr = e.completionRepo.CountByUser(context.Background(), "user-1")
	require.NoError(t, repoErr)
	assert.Equal(t, 1, count)
}

func TestCompleteMission_JournalFailureDoesNotVoidTheReward(t *testing.T) {
	e := newEnv()
	flaky := &flakyProgressRepo{
		memProgressRepo: e.progressRepo,
		saveXPErr:       errors.New("journal table unavailable"),
	}
	handler := NewCompleteMissionHandler(
		flaky, e.completionRepo, e.catalog, e.flow, nil, e.bus, e.locks, e.log)
	handler.now = e.clock

	result, err := handler.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyBenchmark.String(),
		At:        wednesday,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.XP(50), result.XPAwarded)

	saved, err := e.progressRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(80), saved.TotalPoints)
}

func TestCompleteMission_XPHistoryIsJournaled(t *testing.T) {
	e := newEnv()

	_, err := e.completeMission.Handle(context.Background(), CompleteMissionCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyDriverUpdate.String(),
		At:        wednesday,
	})
	require.NoError(t, err)

	history, err := e.progressRepo.GetXPHistory(context.Background(), "user-1", time.Time{}, time.Now())
	require.NoError(t, err)
	// One entry for the mission reward, one for the achievement bonus.
	require.Len(t, history, 2)
	assert.Equal(t, "mission", history[0].Reason)
	assert.Equal(t, shared.XP(100), history[0].Delta)
	assert.Equal(t, "achievement_bonus", history[1].Reason)
}
