package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

func referenceSetup(userID string) SaveSetupCommand {
	return SaveSetupCommand{
		UserID:      userID,
		DisplayName: "Rafael",
		CPU:         "AMD Ryzen 9 7950X",
		GPU:         "NVIDIA RTX 4090",
		RAM:         "32GB DDR5 6000MHz",
		Storage:     "1TB NVMe Gen4",
		Monitor:     "27\" 240Hz IPS",
	}
}

func TestSaveSetup_ScoresAndChangesTier(t *testing.T) {
	e := newEnv()

	result, err := e.saveSetup.Handle(context.Background(), referenceSetup("user-1"))
	require.NoError(t, err)

	assert.Equal(t, 1050, result.Score.Total)
	assert.Equal(t, shared.TierSilver, result.Score.Tier)
	assert.Equal(t, shared.TierBronze, result.PreviousTier)
	assert.True(t, result.TierChanged)
	assert.Equal(t, 1050, result.Progress.SetupScore)

	seen := e.bus.typesSeen()
	assert.Equal(t, 1, seen[shared.EventSetupScored])
	assert.Equal(t, 1, seen[shared.EventTierChanged])
}

func TestSaveSetup_CompleteProfileUnlocksSetupMaster(t *testing.T) {
	e := newEnv()

	result, err := e.saveSetup.Handle(context.Background(), referenceSetup("user-1"))
	require.NoError(t, err)

	require.True(t, result.Achievements.HasNewAchievements())
	require.Len(t, result.Achievements.Unlocked, 1)
	assert.Equal(t, achievement.AchievementSetupMaster, result.Achievements.Unlocked[0].ID)
	assert.Equal(t, shared.XP(30), result.Progress.TotalPoints)
}

func TestSaveSetup_PartialProfileEarnsNothing(t *testing.T) {
	e := newEnv()

	result, err := e.saveSetup.Handle(context.Background(), SaveSetupCommand{
		UserID: "user-1",
		CPU:    "Intel Core i5-12400F",
		RAM:    "16GB DDR4",
	})
	require.NoError(t, err)

	assert.Equal(t, 280, result.Score.Total) // i5 band 180 + 16GB capacity 100
	assert.Equal(t, shared.TierBronze, result.Score.Tier)
	assert.False(t, result.TierChanged)
	assert.False(t, result.Achievements.HasNewAchievements())
}

func TestSaveSetup_ResaveIsIdempotent(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	first, err := e.saveSetup.Handle(ctx, referenceSetup("user-1"))
	require.NoError(t, err)
	second, err := e.saveSetup.Handle(ctx, referenceSetup("user-1"))
	require.NoError(t, err)

	assert.Equal(t, first.Score.Total, second.Score.Total)
	assert.False(t, second.TierChanged)
	assert.False(t, second.Achievements.HasNewAchievements())
	// Same total: the setup master bonus is granted once.
	assert.Equal(t, shared.XP(30), second.Progress.TotalPoints)

	seen := e.bus.typesSeen()
	assert.Equal(t, 2, seen[shared.EventSetupScored])
	assert.Equal(t, 1, seen[shared.EventTierChanged])
}

func TestSaveSetup_OverwritesStoredProfile(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	_, err := e.saveSetup.Handle(ctx, referenceSetup("user-1"))
	require.NoError(t, err)

	downgrade := SaveSetupCommand{UserID: "user-1", CPU: "Intel Celeron G6900"}
	result, err := e.saveSetup.Handle(ctx, downgrade)
	require.NoError(t, err)

	stored, err := e.setupRepo.GetByUserID(ctx, shared.UserID("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "Intel Celeron G6900", stored.CPU)
	assert.Empty(t, stored.GPU)

	assert.Equal(t, shared.TierBronze, result.Score.Tier)
	assert.True(t, result.TierChanged)
	assert.Equal(t, shared.TierSilver, result.PreviousTier)
}

func TestSaveSetup_UnrecognizedHardwareGetsFallback(t *testing.T) {
	e := newEnv()

	result, err := e.saveSetup.Handle(context.Background(), SaveSetupCommand{
		UserID: "user-1",
		CPU:    "Zhaoxin KaiXian KX-7000",
		GPU:    "Moore Threads MTT S80",
	})
	require.NoError(t, err)

	// Non-empty unrecognized text earns the category minimum, not zero.
	assert.Equal(t, 220, result.Score.Total) // CPU fallback 100 + GPU fallback 120
	assert.Equal(t, shared.TierBronze, result.Score.Tier)
}
