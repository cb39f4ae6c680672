package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/application/saga"
	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/keyedmutex"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT MISSION PROOF COMMAND
// Runs the proof through the external verifier. An accepted proof
// completes the mission and awards its XP; a rejected proof is stored
// with the verdict and the mission stays available for another attempt.
// Verifier outage leaves no trace: the user retries later.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitProofCommand contains the proof submission data.
type SubmitProofCommand struct {
	// UserID is the stable identifier of the user.
	UserID string

	// MissionID identifies the catalog mission.
	MissionID string

	// Proof is the free-text evidence of completion.
	Proof string

	// At is when the proof was submitted (defaults to now if zero).
	At time.Time
}

// Validate validates the command.
func (c SubmitProofCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if !shared.MissionID(c.MissionID).IsValid() {
		return shared.ErrUnknownMission
	}
	return nil
}

// SubmitProofResult contains the verifier verdict and, when accepted,
// the completion outcome.
type SubmitProofResult struct {
	// Accepted indicates the verifier approved the proof.
	Accepted bool

	// VerifierNote is the verifier's explanation of the verdict.
	VerifierNote string

	// Submission is the stored proof submission with its final status.
	Submission *mission.ProofSubmission

	// Completion is set only when the proof was accepted.
	Completion *CompleteMissionResult
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitProofHandler handles the SubmitProofCommand.
type SubmitProofHandler struct {
	progressRepo    progression.Repository
	completionRepo  mission.CompletionRepository
	proofRepo       mission.ProofRepository
	catalog         *mission.Catalog
	verifier        mission.Verifier
	ledger          *progression.Ledger
	achievementFlow *saga.AchievementFlow
	leaderboard     leaderboard.Cache
	eventBus        shared.EventPublisher
	locks           *keyedmutex.KeyedMutex
	log             *logger.Logger
	now             func() time.Time
}

// NewSubmitProofHandler creates a new SubmitProofHandler.
func NewSubmitProofHandler(
	progressRepo progression.Repository,
	completionRepo mission.CompletionRepository,
	proofRepo mission.ProofRepository,
	catalog *mission.Catalog,
	verifier mission.Verifier,
	achievementFlow *saga.AchievementFlow,
	leaderboardCache leaderboard.Cache,
	eventBus shared.EventPublisher,
	locks *keyedmutex.KeyedMutex,
	log *logger.Logger,
) *SubmitProofHandler {
	return &SubmitProofHandler{
		progressRepo:    progressRepo,
		completionRepo:  completionRepo,
		proofRepo:       proofRepo,
		catalog:         catalog,
		verifier:        verifier,
		ledger:          progression.NewLedger(),
		achievementFlow: achievementFlow,
		leaderboard:     leaderboardCache,
		eventBus:        eventBus,
		locks:           locks,
		log:             log,
		now:             timeutil.Now,
	}
}

// Handle executes the submit proof command.
func (h *SubmitProofHandler) Handle(ctx context.Context, cmd SubmitProofCommand) (*SubmitProofResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_proof: %w", err)
	}

	m, err := h.catalog.Get(shared.MissionID(cmd.MissionID))
	if err != nil {
		return nil, fmt.Errorf("submit_proof: %w", err)
	}
	if !m.RequiresProof {
		return nil, fmt.Errorf("submit_proof: %w", shared.ErrProofNotRequired)
	}

	now := h.now()
	at := cmd.At
	if at.IsZero() {
		at = now
	}
	// Proof for a window that already closed cannot score the mission.
	if !mission.PeriodStartFor(m.Period, at).Equal(mission.PeriodStartFor(m.Period, now)) {
		return nil, fmt.Errorf("submit_proof: %w", shared.ErrMissionExpired)
	}

	var result *SubmitProofResult
	err = h.locks.WithLockContext(ctx, cmd.UserID, func(ctx context.Context) error {
		progress, _, err := loadOrCreateProgress(ctx, h.progressRepo, h.eventBus,
			shared.UserID(cmd.UserID), "")
		if err != nil {
			return err
		}

		periodStart := mission.PeriodStartFor(m.Period, at)
		if err := h.ensureNotCompleted(ctx, progress.UserID, m, periodStart); err != nil {
			return err
		}

		submission, err := mission.NewProofSubmission(progress.UserID, m, cmd.Proof, at)
		if err != nil {
			return err
		}

		// A pending row can linger if a previous attempt crashed between
		// persist and verdict; close it before the new attempt.
		if stale, err := h.proofRepo.GetPending(ctx, progress.UserID, m.ID, periodStart); err == nil {
			_ = stale.Reject("substituído por nova tentativa", at)
			_ = h.proofRepo.Update(ctx, stale)
		}

		// The verdict is obtained before anything is persisted, so a
		// verifier outage leaves the mission untouched.
		verdict, err := h.verifier.Verify(ctx, m, submission.Proof)
		if err != nil {
			h.log.Warn("proof verification failed",
				logger.UserID(cmd.UserID), logger.MissionID(cmd.MissionID), logger.Err(err))
			// Timeouts and unparseable verdicts keep their own sentinels;
			// everything else collapses into "verifier unavailable".
			if errors.Is(err, shared.ErrVerifierTimeout) ||
				errors.Is(err, shared.ErrVerifierInvalidResponse) {
				return err
			}
			return fmt.Errorf("%w: %v", shared.ErrProofVerificationUnavailable, err)
		}

		if verdict.Accepted {
			if err := submission.Accept(verdict.Note, at); err != nil {
				return err
			}
		} else {
			if err := submission.Reject(verdict.Note, at); err != nil {
				return err
			}
		}
		if err := h.proofRepo.Create(ctx, submission); err != nil {
			return fmt.Errorf("save submission: %w", err)
		}

		if h.eventBus != nil {
			_ = h.eventBus.Publish(shared.NewProofSubmittedEvent(cmd.UserID, cmd.MissionID, verdict.Accepted))
		}

		result = &SubmitProofResult{
			Accepted:     verdict.Accepted,
			VerifierNote: verdict.Note,
			Submission:   submission,
		}
		if !verdict.Accepted {
			h.log.Info("proof rejected",
				logger.UserID(cmd.UserID), logger.MissionID(cmd.MissionID))
			return nil
		}

		completed, err := completeAndAward(ctx, completionDeps{
			progressRepo:    h.progressRepo,
			completionRepo:  h.completionRepo,
			ledger:          h.ledger,
			achievementFlow: h.achievementFlow,
			leaderboard:     h.leaderboard,
			eventBus:        h.eventBus,
			log:             h.log,
		}, progress, m, at)
		if err != nil {
			return err
		}
		result.Completion = completed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit_proof: %w", err)
	}
	return result, nil
}

// ensureNotCompleted rejects a submission for a mission already
// completed in the current period.
func (h *SubmitProofHandler) ensureNotCompleted(
	ctx context.Context,
	userID shared.UserID,
	m *mission.Mission,
	periodStart time.Time,
) error {
	completions, err := h.completionRepo.GetForPeriod(ctx, userID, periodStart)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("load completions: %w", err)
	}
	for _, c := range completions {
		if c.MissionID == m.ID {
			return shared.ErrAlreadyCompleted
		}
	}
	return nil
}
