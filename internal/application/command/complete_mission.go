package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

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
// COMPLETE MISSION COMMAND
// Completes a non-proof mission in the current period and awards its XP.
// At most one completion per (user, mission) per period; the uniqueness
// constraint in the store is the final arbiter.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMissionCommand contains the data to complete a mission.
type CompleteMissionCommand struct {
	// UserID is the stable identifier of the user.
	UserID string

	// MissionID identifies the catalog mission.
	MissionID string

	// At is when the completion happened (defaults to now if zero).
	At time.Time
}

// Validate validates the command.
func (c CompleteMissionCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if !shared.MissionID(c.MissionID).IsValid() {
		return shared.ErrUnknownMission
	}
	return nil
}

// CompleteMissionResult contains the result of completing a mission.
type CompleteMissionResult struct {
	// Completion is the persisted completion record.
	Completion *mission.Completion

	// XPAwarded is the mission reward.
	XPAwarded shared.XP

	// LevelUps gained from the reward (achievement bonuses not included).
	LevelUps int

	// Achievements unlocked by this completion.
	Achievements *saga.AchievementFlowResult

	// Progress is the updated progression record.
	Progress *progression.UserProgress
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMissionHandler handles the CompleteMissionCommand.
type CompleteMissionHandler struct {
	progressRepo    progression.Repository
	completionRepo  mission.CompletionRepository
	catalog         *mission.Catalog
	ledger          *progression.Ledger
	achievementFlow *saga.AchievementFlow
	leaderboard     leaderboard.Cache
	eventBus        shared.EventPublisher
	locks           *keyedmutex.KeyedMutex
	log             *logger.Logger
	now             func() time.Time
}

// NewCompleteMissionHandler creates a new CompleteMissionHandler.
func NewCompleteMissionHandler(
	progressRepo progression.Repository,
	completionRepo mission.CompletionRepository,
	catalog *mission.Catalog,
	achievementFlow *saga.AchievementFlow,
	leaderboardCache leaderboard.Cache,
	eventBus shared.EventPublisher,
	locks *keyedmutex.KeyedMutex,
	log *logger.Logger,
) *CompleteMissionHandler {
	return &CompleteMissionHandler{
		progressRepo:    progressRepo,
		completionRepo:  completionRepo,
		catalog:         catalog,
		ledger:          progression.NewLedger(),
		achievementFlow: achievementFlow,
		leaderboard:     leaderboardCache,
		eventBus:        eventBus,
		locks:           locks,
		log:             log,
		now:             timeutil.Now,
	}
}

// Handle executes the complete mission command.
func (h *CompleteMissionHandler) Handle(ctx context.Context, cmd CompleteMissionCommand) (*CompleteMissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_mission: %w", err)
	}

	m, err := h.catalog.Get(shared.MissionID(cmd.MissionID))
	if err != nil {
		return nil, fmt.Errorf("complete_mission: %w", err)
	}
	if m.RequiresProof {
		// Proof-gated missions complete only through proof verification.
		return nil, fmt.Errorf("complete_mission: %w", shared.ErrProofRequired)
	}

	now := h.now()
	at := cmd.At
	if at.IsZero() {
		at = now
	}
	// Completions land only in the current window; a stale timestamp
	// must not rewrite a period that already ended.
	if !mission.PeriodStartFor(m.Period, at).Equal(mission.PeriodStartFor(m.Period, now)) {
		return nil, fmt.Errorf("complete_mission: %w", shared.ErrMissionExpired)
	}

	var result *CompleteMissionResult
	err = h.locks.WithLockContext(ctx, cmd.UserID, func(ctx context.Context) error {
		progress, _, err := loadOrCreateProgress(ctx, h.progressRepo, h.eventBus,
			shared.UserID(cmd.UserID), "")
		if err != nil {
			return err
		}

		completed, err := completeAndAward(ctx, h.deps(), progress, m, at)
		if err != nil {
			return err
		}
		result = completed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete_mission: %w", err)
	}
	return result, nil
}

func (h *CompleteMissionHandler) deps() completionDeps {
	return completionDeps{
		progressRepo:    h.progressRepo,
		completionRepo:  h.completionRepo,
		ledger:          h.ledger,
		achievementFlow: h.achievementFlow,
		leaderboard:     h.leaderboard,
		eventBus:        h.eventBus,
		log:             h.log,
	}
}

// completionDeps bundles what the shared completion flow needs.
// Both direct completion and accepted-proof completion funnel through it.
type completionDeps struct {
	progressRepo    progression.Repository
	completionRepo  mission.CompletionRepository
	ledger          *progression.Ledger
	achievementFlow *saga.AchievementFlow
	leaderboard     leaderboard.Cache
	eventBus        shared.EventPublisher
	log             *logger.Logger
}

// completeAndAward records the completion, applies the reward and the
// achievement flow, persists the aggregate and refreshes the leaderboard.
// The completion row and the XP award land together or not at all: when
// the aggregate cannot be persisted, the completion is rolled back so a
// later retry can still award the XP. The caller must hold the per-user
// lock.
func completeAndAward(
	ctx context.Context,
	deps completionDeps,
	progress *progression.UserProgress,
	m *mission.Mission,
	at time.Time,
) (*CompleteMissionResult, error) {
	completion := mission.NewCompletion(progress.UserID, m, at)
	if err := deps.completionRepo.Create(ctx, completion); err != nil {
		// The store enforces one completion per (user, mission, period).
		return nil, err
	}

	applied, achievements, err := awardReward(ctx, deps, progress, m, at)
	if err != nil {
		// The completion row is already durable but the XP never landed.
		// Left in place it would refuse retries with ErrAlreadyCompleted
		// and strand the reward for the rest of the period.
		if delErr := deps.completionRepo.Delete(ctx, completion.ID); delErr != nil {
			deps.log.Error("completion rollback failed",
				logger.UserID(progress.UserID.String()),
				logger.MissionID(m.ID.String()),
				logger.Err(delErr))
		}
		return nil, err
	}

	// Events follow the durable write: a persistence retry must not
	// announce the reward twice.
	if deps.eventBus != nil {
		_ = deps.eventBus.Publish(shared.NewMissionCompletedEvent(
			progress.UserID.String(), m.ID.String(), m.Reward.Int(),
			string(m.Period), completion.PeriodStart,
		))
		_ = deps.eventBus.Publish(shared.NewXPGainedEvent(
			progress.UserID.String(), m.Reward.Int(), progress.TotalPoints.Int(),
			"mission", m.ID.String(),
		))
		if applied.LeveledUp() {
			_ = deps.eventBus.Publish(shared.NewLevelUpEvent(
				progress.UserID.String(), applied.OldLevel.Int(), applied.NewLevel.Int(),
			))
		}
	}

	if deps.leaderboard != nil {
		entry, entryErr := leaderboard.NewEntry(progress.UserID, progress.DisplayName,
			progress.TotalPoints, progress.Level, shared.TierForScore(progress.SetupScore))
		if entryErr == nil {
			if err := deps.leaderboard.UpdateScore(ctx, entry); err != nil {
				deps.log.Warn("leaderboard refresh failed",
					logger.UserID(progress.UserID.String()), logger.Err(err))
			}
		}
	}

	deps.log.Info("mission completed",
		logger.UserID(progress.UserID.String()),
		logger.MissionID(m.ID.String()),
		logger.XPAmount(m.Reward.Int()),
		logger.LevelValue(progress.Level.Int()),
	)

	return &CompleteMissionResult{
		Completion:   completion,
		XPAwarded:    m.Reward,
		LevelUps:     applied.LevelUps,
		Achievements: achievements,
		Progress:     progress,
	}, nil
}

// awardReward persists the reward, retrying once when another instance
// won the optimistic-lock race: the per-user lock is process-local, so
// a writer on a second instance can advance the aggregate between load
// and update. The retry re-bases on the freshly loaded aggregate.
func awardReward(
	ctx context.Context,
	deps completionDeps,
	progress *progression.UserProgress,
	m *mission.Mission,
	at time.Time,
) (*progression.ApplyResult, *saga.AchievementFlowResult, error) {
	applied, achievements, err := applyAndPersist(ctx, deps, progress, m, at)
	if err == nil || !errors.Is(err, shared.ErrOptimisticLock) {
		return applied, achievements, err
	}

	fresh, loadErr := deps.progressRepo.GetByUserID(ctx, progress.UserID)
	if loadErr != nil {
		return nil, nil, fmt.Errorf("reload progress: %w", loadErr)
	}
	*progress = *fresh
	return applyAndPersist(ctx, deps, progress, m, at)
}

// applyAndPersist applies the mission reward and the achievement flow
// to the aggregate in memory and persists it.
func applyAndPersist(
	ctx context.Context,
	deps completionDeps,
	progress *progression.UserProgress,
	m *mission.Mission,
	at time.Time,
) (*progression.ApplyResult, *saga.AchievementFlowResult, error) {
	applied, err := deps.ledger.ApplyXP(progress, m.Reward)
	if err != nil {
		return nil, nil, err
	}
	*progress = *applied.Progress

	// The journal is diagnostic; losing an entry must not void the reward.
	if err := deps.progressRepo.SaveXPChange(ctx, progression.XPHistoryEntry{
		ID:         uuid.New().String(),
		UserID:     progress.UserID,
		Delta:      m.Reward,
		TotalAfter: progress.TotalPoints,
		Reason:     "mission",
		SourceID:   m.ID.String(),
		CreatedAt:  at.UTC(),
	}); err != nil {
		deps.log.Warn("xp journal write failed",
			logger.UserID(progress.UserID.String()),
			logger.MissionID(m.ID.String()),
			logger.Err(err))
	}

	achievements, err := deps.achievementFlow.Run(ctx, progress)
	if err != nil {
		return nil, nil, err
	}

	touch(progress)
	if err := deps.progressRepo.Update(ctx, progress); err != nil {
		return nil, nil, fmt.Errorf("update progress: %w", err)
	}

	return applied, achievements, nil
}
