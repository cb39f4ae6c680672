package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

func newTestProgress() *UserProgress {
	return NewUserProgress("tester", "Tester")
}

func TestNewUserProgress_Defaults(t *testing.T) {
	p := newTestProgress()

	assert.Equal(t, shared.Level(0), p.Level)
	assert.Equal(t, shared.XP(0), p.XP)
	assert.Equal(t, shared.XP(1000), p.XPToNextLevel)
	assert.Equal(t, shared.XP(0), p.TotalPoints)
	assert.NoError(t, p.Validate())
}

func TestLevelThreshold_Linear(t *testing.T) {
	assert.Equal(t, shared.XP(1000), LevelThreshold(0))
	assert.Equal(t, shared.XP(2000), LevelThreshold(1))
	assert.Equal(t, shared.XP(3000), LevelThreshold(2))
	assert.Equal(t, shared.XP(11000), LevelThreshold(10))
	// Negative levels are clamped, not an error.
	assert.Equal(t, shared.XP(1000), LevelThreshold(-3))
}

func TestApplyXP_SimpleGain(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	result, err := ledger.ApplyXP(p, 400)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(0), result.Progress.Level)
	assert.Equal(t, shared.XP(400), result.Progress.XP)
	assert.Equal(t, shared.XP(400), result.Progress.TotalPoints)
	assert.Equal(t, 0, result.LevelUps)
}

func TestApplyXP_SingleLevelUp(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()
	p.XP = 900

	result, err := ledger.ApplyXP(p, 150)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(1), result.Progress.Level)
	assert.Equal(t, shared.XP(50), result.Progress.XP)
	assert.Equal(t, LevelThreshold(1), result.Progress.XPToNextLevel)
	assert.Equal(t, 1, result.LevelUps)
	assert.True(t, result.LeveledUp())
}

func TestApplyXP_MultipleLevelUpsInOneCall(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	// 1000 (0→1) + 2000 (1→2) + 500 left over.
	result, err := ledger.ApplyXP(p, 3500)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(2), result.Progress.Level)
	assert.Equal(t, shared.XP(500), result.Progress.XP)
	assert.Equal(t, LevelThreshold(2), result.Progress.XPToNextLevel)
	assert.Equal(t, 2, result.LevelUps)
}

func TestApplyXP_InvariantHoldsAfterEveryApplication(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	deltas := []shared.XP{1, 999, 1000, 50, 12345, 7, 100000}
	var total shared.XP
	for _, delta := range deltas {
		result, err := ledger.ApplyXP(p, delta)
		require.NoError(t, err)
		p = result.Progress
		total += delta

		assert.Less(t, int(p.XP), int(p.XPToNextLevel))
		assert.Equal(t, total, p.TotalPoints)
	}
}

func TestApplyXP_AdditivityOfLeveling(t *testing.T) {
	ledger := NewLedger()

	// One big application...
	oneShot := newTestProgress()
	result, err := ledger.ApplyXP(oneShot, 6100)
	require.NoError(t, err)

	// ...must land on the same level/xp as the same total split into pieces.
	split := newTestProgress()
	for _, delta := range []shared.XP{100, 2000, 3000, 500, 500} {
		r, err := ledger.ApplyXP(split, delta)
		require.NoError(t, err)
		split = r.Progress
	}

	assert.Equal(t, result.Progress.Level, split.Level)
	assert.Equal(t, result.Progress.XP, split.XP)
	assert.Equal(t, result.Progress.XPToNextLevel, split.XPToNextLevel)
	assert.Equal(t, result.Progress.TotalPoints, split.TotalPoints)
}

func TestApplyXP_TotalPointsSaturatesAtCap(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()
	p.TotalPoints = shared.MaxXP - 10

	result, err := ledger.ApplyXP(p, 50)
	require.NoError(t, err)

	// Lifetime points stop at the cap; leveling continues past it.
	assert.Equal(t, shared.MaxXP, result.Progress.TotalPoints)
	assert.Equal(t, shared.XP(50), result.Progress.XP)

	again, err := ledger.ApplyXP(result.Progress, 100)
	require.NoError(t, err)
	assert.Equal(t, shared.MaxXP, again.Progress.TotalPoints)
	assert.Equal(t, shared.XP(150), again.Progress.XP)
}

func TestApplyXP_RejectsNonPositiveDelta(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	_, err := ledger.ApplyXP(p, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidXPDelta)

	_, err = ledger.ApplyXP(p, -50)
	assert.ErrorIs(t, err, shared.ErrInvalidXPDelta)

	_, err = ledger.ApplyXP(nil, 100)
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)
}

func TestApplyXP_DoesNotMutateInput(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	_, err := ledger.ApplyXP(p, 1500)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(0), p.Level)
	assert.Equal(t, shared.XP(0), p.XP)
	assert.Equal(t, shared.XP(0), p.TotalPoints)
}

func TestUnlockAchievement_Idempotent(t *testing.T) {
	p := newTestProgress()
	at := timeutil.DateTime(2026, 3, 2, 12, 0, 0)

	assert.True(t, p.UnlockAchievement("first_mission", at))
	assert.False(t, p.UnlockAchievement("first_mission", at))
	assert.True(t, p.HasAchievement("first_mission"))
}

func TestRecordLogin_StartsStreak(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	result, err := ledger.RecordLogin(p, timeutil.DateTime(2026, 3, 2, 9, 0, 0))
	require.NoError(t, err)

	assert.True(t, result.Counted)
	assert.Equal(t, 1, result.Progress.CurrentStreak)
	assert.Equal(t, 1, result.Progress.BestStreak)
}

func TestRecordLogin_SameDayIsNoOp(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	first, err := ledger.RecordLogin(p, timeutil.DateTime(2026, 3, 2, 9, 0, 0))
	require.NoError(t, err)

	second, err := ledger.RecordLogin(first.Progress, timeutil.DateTime(2026, 3, 2, 21, 30, 0))
	require.NoError(t, err)

	assert.False(t, second.Counted)
	assert.Equal(t, 1, second.Progress.CurrentStreak)
}

func TestRecordLogin_ConsecutiveDaysExtendStreak(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	for day := 2; day <= 8; day++ {
		result, err := ledger.RecordLogin(p, timeutil.DateTime(2026, 3, day, 10, 0, 0))
		require.NoError(t, err)
		p = result.Progress
	}

	assert.Equal(t, 7, p.CurrentStreak)
	assert.Equal(t, 7, p.BestStreak)
}

func TestRecordLogin_MissedDayBreaksStreak(t *testing.T) {
	ledger := NewLedger()
	p := newTestProgress()

	for day := 2; day <= 4; day++ {
		result, err := ledger.RecordLogin(p, timeutil.DateTime(2026, 3, day, 10, 0, 0))
		require.NoError(t, err)
		p = result.Progress
	}

	// Skip March 5th entirely.
	result, err := ledger.RecordLogin(p, timeutil.DateTime(2026, 3, 6, 10, 0, 0))
	require.NoError(t, err)

	assert.True(t, result.StreakBroken)
	assert.Equal(t, 3, result.PreviousStreak)
	assert.Equal(t, 1, result.Progress.CurrentStreak)
	assert.Equal(t, 3, result.Progress.BestStreak)
}
