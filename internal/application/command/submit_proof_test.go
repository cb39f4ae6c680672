package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

func TestSubmitProof_AcceptedCompletesMission(t *testing.T) {
	e := newEnv()
	e.verifier.verdict = &mission.Verdict{Accepted: true, Note: "SIM"}

	result, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "instalei um SSD NVMe de 1TB, nota fiscal em anexo",
		At:        wednesday,
	})
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, mission.ProofAccepted, result.Submission.Status)
	require.NotNil(t, result.Completion)
	assert.Equal(t, shared.XP(500), result.Completion.XPAwarded)

	saved, err := e.progressRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	// 500 reward + 30 first-mission bonus.
	assert.Equal(t, shared.XP(530), saved.TotalPoints)

	seen := e.bus.typesSeen()
	assert.Equal(t, 1, seen[shared.EventProofSubmitted])
	assert.Equal(t, 1, seen[shared.EventMissionCompleted])
}

func TestSubmitProof_RejectedKeepsMissionAvailable(t *testing.T) {
	e := newEnv()
	e.verifier.verdict = &mission.Verdict{Accepted: false, Note: "NÃO - evidência insuficiente"}

	result, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "troquei umas coisas",
		At:        wednesday,
	})
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, mission.ProofRejected, result.Submission.Status)
	assert.Nil(t, result.Completion)

	// No XP moved, no completion recorded.
	count, err := e.completionRepo.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	saved, err := e.progressRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(0), saved.TotalPoints)

	// A second attempt with better evidence goes through.
	e.verifier.verdict = &mission.Verdict{Accepted: true, Note: "SIM"}
	retry, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "instalei o SSD, segue a nota fiscal e fotos da instalação",
		At:        wednesday.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.True(t, retry.Accepted)
}

func TestSubmitProof_VerifierOutageLeavesNoTrace(t *testing.T) {
	e := newEnv()
	e.verifier.err = errors.New("connection refused")

	_, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyOptimize.String(),
		Proof:     "otimização completa feita",
		At:        wednesday,
	})
	assert.ErrorIs(t, err, shared.ErrProofVerificationUnavailable)

	// No submission was stored: the user simply retries later.
	weekStart := mission.PeriodStartFor(shared.PeriodWeekly, wednesday)
	subs, repoErr := e.proofRepo.GetForPeriod(context.Background(), "user-1", weekStart)
	require.NoError(t, repoErr)
	assert.Empty(t, subs)
}

func TestSubmitProof_PreviousWeekIsRejected(t *testing.T) {
	e := newEnv()

	_, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "instalei um SSD NVMe semana passada",
		At:        wednesday.AddDate(0, 0, -7),
	})
	assert.ErrorIs(t, err, shared.ErrMissionExpired)
	assert.Zero(t, e.verifier.calls)
}

func TestSubmitProof_UnintelligibleVerdictKeepsItsSentinel(t *testing.T) {
	e := newEnv()
	e.verifier.err = shared.ErrVerifierInvalidResponse

	_, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "instalei um SSD NVMe",
		At:        wednesday,
	})
	assert.ErrorIs(t, err, shared.ErrVerifierInvalidResponse)
	assert.NotErrorIs(t, err, shared.ErrProofVerificationUnavailable)

	// The proof was not consumed; nothing was stored.
	weekStart := mission.PeriodStartFor(shared.PeriodWeekly, wednesday)
	subs, repoErr := e.proofRepo.GetForPeriod(context.Background(), "user-1", weekStart)
	require.NoError(t, repoErr)
	assert.Empty(t, subs)
}

func TestSubmitProof_AlreadyCompletedThisWeek(t *testing.T) {
	e := newEnv()

	_, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "instalei um SSD NVMe",
		At:        wednesday,
	})
	require.NoError(t, err)

	_, err = e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "instalei outro SSD",
		At:        wednesday.AddDate(0, 0, 2), // still the same ISO week
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyCompleted)
	assert.Equal(t, 1, e.verifier.calls)
}

func TestSubmitProof_DailyMissionTakesNoProof(t *testing.T) {
	e := newEnv()

	_, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionDailyBenchmark.String(),
		Proof:     "fiz o benchmark",
		At:        wednesday,
	})
	assert.ErrorIs(t, err, shared.ErrProofNotRequired)
}

func TestSubmitProof_EmptyProofRejectedBeforeVerifier(t *testing.T) {
	e := newEnv()

	_, err := e.submitProof.Handle(context.Background(), SubmitProofCommand{
		UserID:    "user-1",
		MissionID: mission.MissionWeeklyUpgrade.String(),
		Proof:     "   ",
		At:        wednesday,
	})
	assert.ErrorIs(t, err, shared.ErrEmptyProof)
	assert.Zero(t, e.verifier.calls)
}
