package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

// Wednesday afternoon in São Paulo; the week started Monday 2026-03-02.
var wednesday = time.Date(2026, 3, 4, 15, 0, 0, 0, timeutil.SaoPauloTZ)

type missionsEnv struct {
	catalog        *mission.Catalog
	completionRepo *fakeCompletionRepo
	proofRepo      *fakeProofRepo
	handler        *ListMissionsHandler
}

func newMissionsEnv() *missionsEnv {
	e := &missionsEnv{
		catalog:        mission.NewCatalog(),
		completionRepo: &fakeCompletionRepo{},
		proofRepo:      &fakeProofRepo{},
	}
	e.handler = NewListMissionsHandler(e.catalog, e.completionRepo, e.proofRepo)
	return e
}

func (e *missionsEnv) complete(t *testing.T, userID string, id shared.MissionID, at time.Time) {
	t.Helper()
	m, err := e.catalog.Get(id)
	require.NoError(t, err)
	c := mission.NewCompletion(shared.UserID(userID), m, at)
	require.NoError(t, e.completionRepo.Create(context.Background(), c))
}

func statusOf(result *ListMissionsResult, id shared.MissionID) string {
	for _, dto := range result.Missions {
		if dto.ID == id.String() {
			return dto.Status
		}
	}
	return ""
}

func TestListMissions_FreshUserSeesFullCatalog(t *testing.T) {
	e := newMissionsEnv()

	result, err := e.handler.Handle(context.Background(), ListMissionsQuery{
		UserID: "user-1",
		At:     wednesday,
	})
	require.NoError(t, err)

	assert.Len(t, result.Missions, 5)
	for _, dto := range result.Missions {
		assert.Equal(t, string(mission.StatusAvailable), dto.Status)
		assert.Nil(t, dto.CompletedAt)
	}
	assert.Zero(t, result.CompletedToday)
	assert.Zero(t, result.CompletedThisWeek)
}

func TestListMissions_CompletedMissionIsMarked(t *testing.T) {
	e := newMissionsEnv()
	e.complete(t, "user-1", mission.MissionDailyBenchmark, wednesday)

	result, err := e.handler.Handle(context.Background(), ListMissionsQuery{
		UserID: "user-1",
		At:     wednesday.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, string(mission.StatusCompleted), statusOf(result, mission.MissionDailyBenchmark))
	assert.Equal(t, string(mission.StatusAvailable), statusOf(result, mission.MissionDailyCleanup))
	assert.Equal(t, 1, result.CompletedToday)
	assert.Zero(t, result.CompletedThisWeek)
}

func TestListMissions_DailyResetsNextDay(t *testing.T) {
	e := newMissionsEnv()
	e.complete(t, "user-1", mission.MissionDailyBenchmark, wednesday)

	thursday := wednesday.AddDate(0, 0, 1)
	result, err := e.handler.Handle(context.Background(), ListMissionsQuery{
		UserID: "user-1",
		At:     thursday,
	})
	require.NoError(t, err)

	// No background job needed: the new day window simply has no completions.
	assert.Equal(t, string(mission.StatusAvailable), statusOf(result, mission.MissionDailyBenchmark))
	assert.Zero(t, result.CompletedToday)
}

func TestListMissions_WeeklySurvivesTheDayButNotTheWeek(t *testing.T) {
	e := newMissionsEnv()
	e.complete(t, "user-1", mission.MissionWeeklyUpgrade, wednesday)

	friday := wednesday.AddDate(0, 0, 2)
	result, err := e.handler.Handle(context.Background(), ListMissionsQuery{UserID: "user-1", At: friday})
	require.NoError(t, err)
	assert.Equal(t, string(mission.StatusCompleted), statusOf(result, mission.MissionWeeklyUpgrade))
	assert.Equal(t, 1, result.CompletedThisWeek)

	nextMonday := wednesday.AddDate(0, 0, 5)
	result, err = e.handler.Handle(context.Background(), ListMissionsQuery{UserID: "user-1", At: nextMonday})
	require.NoError(t, err)
	assert.Equal(t, string(mission.StatusAvailable), statusOf(result, mission.MissionWeeklyUpgrade))
	assert.Zero(t, result.CompletedThisWeek)
}

func TestListMissions_PendingProofShowsProofSubmitted(t *testing.T) {
	e := newMissionsEnv()

	m, err := e.catalog.Get(mission.MissionWeeklyOptimize)
	require.NoError(t, err)
	sub, err := mission.NewProofSubmission(shared.UserID("user-1"), m, "limpei e otimizei tudo", wednesday)
	require.NoError(t, err)
	require.NoError(t, e.proofRepo.Create(context.Background(), sub))

	result, err := e.handler.Handle(context.Background(), ListMissionsQuery{UserID: "user-1", At: wednesday})
	require.NoError(t, err)

	assert.Equal(t, string(mission.StatusProofSubmitted), statusOf(result, mission.MissionWeeklyOptimize))
	assert.Equal(t, string(mission.StatusAvailable), statusOf(result, mission.MissionWeeklyUpgrade))
}

func TestListMissions_PeriodFilter(t *testing.T) {
	e := newMissionsEnv()

	result, err := e.handler.Handle(context.Background(), ListMissionsQuery{
		UserID: "user-1",
		Period: "weekly",
		At:     wednesday,
	})
	require.NoError(t, err)

	assert.Len(t, result.Missions, 2)
	for _, dto := range result.Missions {
		assert.Equal(t, "weekly", dto.Period)
		assert.True(t, dto.RequiresProof)
	}
}

func TestListMissions_MondayCountsKeepPeriodTypesApart(t *testing.T) {
	e := newMissionsEnv()
	// On Monday the daily and weekly windows start at the same instant.
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, timeutil.SaoPauloTZ)
	e.complete(t, "user-1", mission.MissionDailyBenchmark, monday)
	e.complete(t, "user-1", mission.MissionWeeklyUpgrade, monday)

	result, err := e.handler.Handle(context.Background(), ListMissionsQuery{UserID: "user-1", At: monday.Add(time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.CompletedToday)
	assert.Equal(t, 1, result.CompletedThisWeek)
}

func TestListMissions_InvalidPeriodFilter(t *testing.T) {
	e := newMissionsEnv()

	_, err := e.handler.Handle(context.Background(), ListMissionsQuery{
		UserID: "user-1",
		Period: "monthly",
		At:     wednesday,
	})
	assert.Error(t, err)
}
