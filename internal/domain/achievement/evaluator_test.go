package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

func freshContext() *EvalContext {
	return &EvalContext{
		Progress: &UserSnapshot{},
	}
}

func idsOf(defs []*Definition) []shared.AchievementID {
	ids := make([]shared.AchievementID, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestCatalog_HasAllDefinitions(t *testing.T) {
	catalog := NewCatalog()
	assert.Len(t, catalog.All(), 8)

	for _, d := range catalog.All() {
		assert.NotEmpty(t, d.Name)
		assert.Greater(t, d.Bonus.Int(), 0, "achievement %s must carry a bonus", d.ID)
		assert.NotNil(t, d.Unlocked)
	}
}

func TestCatalog_GetUnknown(t *testing.T) {
	catalog := NewCatalog()
	_, err := catalog.Get("nope")
	assert.ErrorIs(t, err, shared.ErrAchievementNotFound)
}

func TestEvaluate_NewUserEarnsNothing(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	earned := eval.Evaluate(freshContext(), nil)
	assert.Empty(t, earned)
}

func TestEvaluate_FirstMission(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	ctx := freshContext()
	ctx.TotalCompletions = 1

	earned := eval.Evaluate(ctx, nil)
	assert.Equal(t, []shared.AchievementID{AchievementFirstMission}, idsOf(earned))
}

func TestEvaluate_AlreadyUnlockedIsSkipped(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	ctx := freshContext()
	ctx.TotalCompletions = 1

	unlocked := map[shared.AchievementID]bool{AchievementFirstMission: true}
	earned := eval.Evaluate(ctx, unlocked)
	assert.Empty(t, earned)
}

func TestEvaluate_MultipleAtOnce(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	// Ten completions cross both mission thresholds in one evaluation.
	ctx := freshContext()
	ctx.TotalCompletions = 10

	earned := eval.Evaluate(ctx, nil)
	assert.ElementsMatch(t,
		[]shared.AchievementID{AchievementFirstMission, AchievementMissionMaster},
		idsOf(earned),
	)
}

func TestEvaluate_WeeklyCompletions(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	ctx := freshContext()
	ctx.TotalCompletions = 5
	ctx.WeeklyCompletions = 5

	earned := eval.Evaluate(ctx, map[shared.AchievementID]bool{AchievementFirstMission: true})
	assert.Equal(t, []shared.AchievementID{AchievementVisionario}, idsOf(earned))
}

func TestEvaluate_PointsAndSetup(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	ctx := freshContext()
	ctx.Progress.TotalPoints = 1200
	ctx.Progress.SetupScore = 3600
	ctx.SetupComplete = true

	earned := eval.Evaluate(ctx, nil)
	assert.ElementsMatch(t,
		[]shared.AchievementID{AchievementUpgrdPro, AchievementSetupMaster, AchievementDiamond},
		idsOf(earned),
	)
}

func TestEvaluate_DiamondRequiresDiamondTier(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	ctx := freshContext()
	ctx.Progress.SetupScore = 3499

	assert.Empty(t, eval.Evaluate(ctx, nil))

	ctx.Progress.SetupScore = 3500
	earned := eval.Evaluate(ctx, nil)
	assert.Equal(t, []shared.AchievementID{AchievementDiamond}, idsOf(earned))
}

func TestEvaluate_StreaksUseBestStreak(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	// A broken streak keeps the achievement: BestStreak never regresses.
	ctx := freshContext()
	ctx.Progress.CurrentStreak = 1
	ctx.Progress.BestStreak = 7

	earned := eval.Evaluate(ctx, nil)
	assert.Equal(t, []shared.AchievementID{AchievementStreak7}, idsOf(earned))

	ctx.Progress.BestStreak = 30
	earned = eval.Evaluate(ctx, nil)
	assert.ElementsMatch(t,
		[]shared.AchievementID{AchievementStreak7, AchievementStreak30},
		idsOf(earned),
	)
}

func TestEvaluate_Idempotent(t *testing.T) {
	eval := NewEvaluator(NewCatalog())

	ctx := freshContext()
	ctx.TotalCompletions = 1
	ctx.Progress.BestStreak = 7

	first := eval.Evaluate(ctx, nil)
	require.Len(t, first, 2)

	unlocked := make(map[shared.AchievementID]bool)
	for _, d := range first {
		unlocked[d.ID] = true
	}

	second := eval.Evaluate(ctx, unlocked)
	assert.Empty(t, second)
}

func TestTotalBonus(t *testing.T) {
	catalog := NewCatalog()

	first, err := catalog.Get(AchievementFirstMission)
	require.NoError(t, err)
	diamond, err := catalog.Get(AchievementDiamond)
	require.NoError(t, err)

	assert.Equal(t, first.Bonus+diamond.Bonus, TotalBonus([]*Definition{first, diamond}))
	assert.Equal(t, shared.XP(0), TotalBonus(nil))
}
