package mission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

func TestCatalog_DefaultIsValid(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, catalog.Validate())

	assert.Len(t, catalog.All(), 5)
	assert.Len(t, catalog.ByPeriod(shared.PeriodDaily), 3)
	assert.Len(t, catalog.ByPeriod(shared.PeriodWeekly), 2)
}

func TestCatalog_WeeklyMissionsRequireProof(t *testing.T) {
	catalog := NewCatalog()

	for _, m := range catalog.ByPeriod(shared.PeriodWeekly) {
		assert.True(t, m.RequiresProof, "weekly mission %s must be proof-gated", m.ID)
	}
	for _, m := range catalog.ByPeriod(shared.PeriodDaily) {
		assert.False(t, m.RequiresProof, "daily mission %s must not need proof", m.ID)
	}
}

func TestCatalog_GetUnknownMission(t *testing.T) {
	catalog := NewCatalog()

	_, err := catalog.Get("mission_that_does_not_exist")
	assert.ErrorIs(t, err, shared.ErrUnknownMission)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMission_ValidateRejectsProofGatedDaily(t *testing.T) {
	m := &Mission{
		ID:            "daily_bad",
		Name:          "Daily with proof",
		Period:        shared.PeriodDaily,
		Reward:        10,
		RequiresProof: true,
	}
	assert.Error(t, m.Validate())
}

func TestPeriodStartFor_Daily(t *testing.T) {
	// Wednesday 2026-03-04 15:30 São Paulo time.
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, timeutil.SaoPauloTZ)

	start := PeriodStartFor(shared.PeriodDaily, now)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, timeutil.SaoPauloTZ), start)
}

func TestPeriodStartFor_WeeklyIsMonday(t *testing.T) {
	// Wednesday 2026-03-04: the ISO week began Monday 2026-03-02.
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, timeutil.SaoPauloTZ)

	start := PeriodStartFor(shared.PeriodWeekly, now)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, timeutil.SaoPauloTZ), start)
	assert.Equal(t, time.Monday, start.Weekday())
}

func TestPeriodStartFor_SundayBelongsToPreviousMonday(t *testing.T) {
	// Sunday 2026-03-08 still belongs to the week of Monday 2026-03-02.
	sunday := time.Date(2026, 3, 8, 23, 59, 0, 0, timeutil.SaoPauloTZ)

	start := PeriodStartFor(shared.PeriodWeekly, sunday)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, timeutil.SaoPauloTZ), start)
}

func TestPeriodStartFor_RolloverChangesKey(t *testing.T) {
	beforeMidnight := time.Date(2026, 3, 4, 23, 59, 59, 0, timeutil.SaoPauloTZ)
	afterMidnight := time.Date(2026, 3, 5, 0, 0, 1, 0, timeutil.SaoPauloTZ)

	// Completions recorded in the old window stop matching the new one.
	assert.NotEqual(t,
		PeriodStartFor(shared.PeriodDaily, beforeMidnight),
		PeriodStartFor(shared.PeriodDaily, afterMidnight),
	)
	// But the week stays the same across a mid-week day rollover.
	assert.Equal(t,
		PeriodStartFor(shared.PeriodWeekly, beforeMidnight),
		PeriodStartFor(shared.PeriodWeekly, afterMidnight),
	)
}

func TestNewCompletion_BindsToCurrentPeriod(t *testing.T) {
	catalog := NewCatalog()
	m, err := catalog.Get(MissionDailyBenchmark)
	require.NoError(t, err)

	now := time.Date(2026, 3, 4, 18, 0, 0, 0, timeutil.SaoPauloTZ)
	completion := NewCompletion("user-1", m, now)

	assert.NotEmpty(t, completion.ID)
	assert.Equal(t, shared.UserID("user-1"), completion.UserID)
	assert.Equal(t, MissionDailyBenchmark, completion.MissionID)
	assert.Equal(t, shared.PeriodDaily, completion.Period)
	assert.Equal(t, PeriodStartFor(shared.PeriodDaily, now), completion.PeriodStart)
	assert.Equal(t, shared.XP(50), completion.RewardXP)
}

func TestNewProofSubmission_Rules(t *testing.T) {
	catalog := NewCatalog()
	weekly, err := catalog.Get(MissionWeeklyUpgrade)
	require.NoError(t, err)
	daily, err := catalog.Get(MissionDailyBenchmark)
	require.NoError(t, err)

	now := time.Date(2026, 3, 4, 18, 0, 0, 0, timeutil.SaoPauloTZ)

	t.Run("valid proof starts pending", func(t *testing.T) {
		sub, err := NewProofSubmission("user-1", weekly, "  instalei um SSD NVMe de 1TB, nota fiscal em anexo  ", now)
		require.NoError(t, err)
		assert.Equal(t, ProofPending, sub.Status)
		assert.Equal(t, "instalei um SSD NVMe de 1TB, nota fiscal em anexo", sub.Proof)
		assert.Equal(t, PeriodStartFor(shared.PeriodWeekly, now), sub.PeriodStart)
	})

	t.Run("empty proof rejected", func(t *testing.T) {
		_, err := NewProofSubmission("user-1", weekly, "   ", now)
		assert.ErrorIs(t, err, shared.ErrEmptyProof)
	})

	t.Run("daily mission takes no proof", func(t *testing.T) {
		_, err := NewProofSubmission("user-1", daily, "fiz o benchmark", now)
		assert.ErrorIs(t, err, shared.ErrProofNotRequired)
	})
}

func TestProofSubmission_StateMachine(t *testing.T) {
	catalog := NewCatalog()
	weekly, err := catalog.Get(MissionWeeklyOptimize)
	require.NoError(t, err)

	now := time.Date(2026, 3, 4, 18, 0, 0, 0, timeutil.SaoPauloTZ)

	t.Run("accept", func(t *testing.T) {
		sub, err := NewProofSubmission("user-1", weekly, "otimização completa feita", now)
		require.NoError(t, err)

		require.NoError(t, sub.Accept("SIM", now.Add(time.Second)))
		assert.Equal(t, ProofAccepted, sub.Status)
		assert.False(t, sub.ReviewedAt.IsZero())

		// Verdicts are final.
		assert.Error(t, sub.Reject("NÃO", now.Add(2*time.Second)))
	})

	t.Run("reject reopens the mission", func(t *testing.T) {
		sub, err := NewProofSubmission("user-1", weekly, "fiz algumas coisas", now)
		require.NoError(t, err)

		require.NoError(t, sub.Reject("NÃO", now.Add(time.Second)))
		assert.Equal(t, ProofRejected, sub.Status)
		assert.Error(t, sub.Accept("SIM", now.Add(2*time.Second)))

		// A rejected proof no longer blocks the mission.
		status := StatusFor(weekly, nil, []*ProofSubmission{sub})
		assert.Equal(t, StatusAvailable, status)
	})
}

func TestStatusFor(t *testing.T) {
	catalog := NewCatalog()
	weekly, err := catalog.Get(MissionWeeklyUpgrade)
	require.NoError(t, err)
	daily, err := catalog.Get(MissionDailyBenchmark)
	require.NoError(t, err)

	now := time.Date(2026, 3, 4, 18, 0, 0, 0, timeutil.SaoPauloTZ)

	t.Run("no records means available", func(t *testing.T) {
		assert.Equal(t, StatusAvailable, StatusFor(daily, nil, nil))
		assert.Equal(t, StatusAvailable, StatusFor(weekly, nil, nil))
	})

	t.Run("completion wins over pending proof", func(t *testing.T) {
		completion := NewCompletion("user-1", weekly, now)
		sub, err := NewProofSubmission("user-1", weekly, "instalei RAM nova", now)
		require.NoError(t, err)

		status := StatusFor(weekly, []*Completion{completion}, []*ProofSubmission{sub})
		assert.Equal(t, StatusCompleted, status)
	})

	t.Run("pending proof shows proof_submitted", func(t *testing.T) {
		sub, err := NewProofSubmission("user-1", weekly, "instalei RAM nova", now)
		require.NoError(t, err)

		status := StatusFor(weekly, nil, []*ProofSubmission{sub})
		assert.Equal(t, StatusProofSubmitted, status)
	})

	t.Run("other missions records do not leak", func(t *testing.T) {
		completion := NewCompletion("user-1", daily, now)
		assert.Equal(t, StatusAvailable, StatusFor(weekly, []*Completion{completion}, nil))
	})
}
