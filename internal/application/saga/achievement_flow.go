// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/setup"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Build Snapshot → Evaluate Predicates → Unlock → Award XP Bonus →
// Publish Events
//
// The saga mutates the aggregate in memory; the calling command handler
// owns the per-user lock and the final persistence of the aggregate.
// Achievements are one-shot: once unlocked the bonus is never granted again.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowResult contains the result of achievement processing.
type AchievementFlowResult struct {
	// UserID - the user who was evaluated.
	UserID shared.UserID

	// Unlocked - newly unlocked achievement definitions.
	Unlocked []*achievement.Definition

	// TotalBonus - total XP awarded from all unlocked achievements.
	TotalBonus shared.XP

	// LevelUps - levels gained from the bonus XP.
	LevelUps int

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// HasNewAchievements returns true if any achievements were unlocked.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.Unlocked) > 0
}

// AchievementFlowStep represents a step in the achievement flow.
type AchievementFlowStep string

const (
	StepBuildSnapshot AchievementFlowStep = "build_snapshot"
	StepEvaluate      AchievementFlowStep = "evaluate"
	StepUnlock        AchievementFlowStep = "unlock"
	StepAwardBonus    AchievementFlowStep = "award_bonus"
	StepPublishEvents AchievementFlowStep = "publish_events"
	StepComplete      AchievementFlowStep = "complete"
)

// AchievementFlow orchestrates achievement evaluation and granting.
type AchievementFlow struct {
	progressRepo   progression.Repository
	completionRepo mission.CompletionRepository
	setupRepo      setup.Repository
	evaluator      *achievement.Evaluator
	ledger         *progression.Ledger
	eventBus       shared.EventPublisher
	log            *logger.Logger

	// maxPerRun caps unlocks in a single evaluation to contain
	// the blast radius of a broken predicate.
	maxPerRun int
}

// AchievementFlowConfig contains configuration for the achievement flow.
type AchievementFlowConfig struct {
	MaxPerRun int
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{MaxPerRun: 5}
}

// NewAchievementFlow creates the achievement flow with all dependencies.
func NewAchievementFlow(
	progressRepo progression.Repository,
	completionRepo mission.CompletionRepository,
	setupRepo setup.Repository,
	catalog *achievement.Catalog,
	eventBus shared.EventPublisher,
	log *logger.Logger,
	config AchievementFlowConfig,
) *AchievementFlow {
	if config.MaxPerRun <= 0 {
		config = DefaultAchievementFlowConfig()
	}
	return &AchievementFlow{
		progressRepo:   progressRepo,
		completionRepo: completionRepo,
		setupRepo:      setupRepo,
		evaluator:      achievement.NewEvaluator(catalog),
		ledger:         progression.NewLedger(),
		eventBus:       eventBus,
		log:            log,
		maxPerRun:      config.MaxPerRun,
	}
}

// Run evaluates achievements for the given aggregate and applies the
// results to it in place. The caller must hold the per-user lock and
// persist the aggregate afterwards.
func (f *AchievementFlow) Run(ctx context.Context, progress *progression.UserProgress) (*AchievementFlowResult, error) {
	if progress == nil {
		return nil, shared.ErrProgressNotFound
	}

	// Step 1: build the evaluation snapshot from repositories.
	evalCtx, err := f.buildSnapshot(ctx, progress)
	if err != nil {
		return nil, f.wrapError(StepBuildSnapshot, progress.UserID, err)
	}

	// Step 2: evaluate predicates against what is already unlocked.
	unlocked := make(map[shared.AchievementID]bool, len(progress.Achievements))
	for id := range progress.Achievements {
		unlocked[id] = true
	}
	earned := f.evaluator.Evaluate(evalCtx, unlocked)
	if len(earned) > f.maxPerRun {
		earned = earned[:f.maxPerRun]
	}

	now := time.Now().UTC()
	result := &AchievementFlowResult{
		UserID:      progress.UserID,
		Unlocked:    earned,
		ProcessedAt: now,
	}
	if len(earned) == 0 {
		return result, nil
	}

	// Step 3: unlock on the aggregate.
	for _, def := range earned {
		if !progress.UnlockAchievement(def.ID, now) {
			// The evaluator already filtered unlocked IDs; hitting this
			// means the caller passed a stale aggregate.
			return nil, f.wrapError(StepUnlock, progress.UserID, shared.ErrAchievementAlreadyUnlocked)
		}
	}

	// Step 4: award the bonus XP through the ledger.
	bonus := achievement.TotalBonus(earned)
	if bonus > 0 {
		applied, err := f.ledger.ApplyXP(progress, bonus)
		if err != nil {
			return nil, f.wrapError(StepAwardBonus, progress.UserID, err)
		}
		*progress = *applied.Progress
		result.TotalBonus = bonus
		result.LevelUps = applied.LevelUps

		for _, def := range earned {
			if err := f.progressRepo.SaveXPChange(ctx, progression.XPHistoryEntry{
				ID:         uuid.New().String(),
				UserID:     progress.UserID,
				Delta:      def.Bonus,
				TotalAfter: progress.TotalPoints,
				Reason:     "achievement_bonus",
				SourceID:   def.ID.String(),
				CreatedAt:  now,
			}); err != nil {
				f.log.Warn("xp journal write failed",
					logger.UserID(progress.UserID.String()),
					logger.String("achievement", def.ID.String()),
					logger.Err(err))
			}
		}

		f.publish(shared.NewXPGainedEvent(
			progress.UserID.String(), bonus.Int(), progress.TotalPoints.Int(),
			"achievement_bonus", "",
		))
		if applied.LeveledUp() {
			f.publish(shared.NewLevelUpEvent(
				progress.UserID.String(),
				applied.OldLevel.Int(),
				applied.NewLevel.Int(),
			))
		}
	}

	// Step 5: publish unlock events. Non-critical: listeners can
	// reconstruct state from the store.
	for _, def := range earned {
		f.publish(shared.NewAchievementUnlockedEvent(
			progress.UserID.String(),
			def.ID.String(),
			def.Bonus.Int(),
		))
	}

	f.log.Info("achievements unlocked",
		logger.UserID(progress.UserID.String()),
		logger.Int("count", len(earned)),
		logger.XPAmount(bonus.Int()),
	)

	return result, nil
}

// buildSnapshot collects the evaluation context from the repositories.
func (f *AchievementFlow) buildSnapshot(ctx context.Context, progress *progression.UserProgress) (*achievement.EvalContext, error) {
	total, err := f.completionRepo.CountByUser(ctx, progress.UserID)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	weekly, err := f.completionRepo.CountByUserAndPeriodType(ctx, progress.UserID, shared.PeriodWeekly)
	if err != nil {
		return nil, fmt.Errorf("count weekly completions: %w", err)
	}

	setupComplete := false
	profile, err := f.setupRepo.GetByUserID(ctx, progress.UserID)
	switch {
	case err == nil:
		setupComplete = profile.IsComplete()
	case errors.Is(err, shared.ErrNotFound):
		// No setup saved yet.
	default:
		return nil, fmt.Errorf("load setup profile: %w", err)
	}

	return &achievement.EvalContext{
		Progress: &achievement.UserSnapshot{
			TotalPoints:   progress.TotalPoints,
			Level:         progress.Level,
			SetupScore:    progress.SetupScore,
			CurrentStreak: progress.CurrentStreak,
			BestStreak:    progress.BestStreak,
		},
		TotalCompletions:  total,
		WeeklyCompletions: weekly,
		SetupComplete:     setupComplete,
	}, nil
}

func (f *AchievementFlow) publish(event shared.Event) {
	if f.eventBus == nil {
		return
	}
	if err := f.eventBus.Publish(event); err != nil {
		f.log.Warn("failed to publish event", logger.Err(err))
	}
}

// wrapError wraps an error with saga context.
func (f *AchievementFlow) wrapError(step AchievementFlowStep, userID shared.UserID, err error) error {
	return &AchievementFlowError{
		Step:    step,
		UserID:  userID,
		Cause:   err,
		Message: fmt.Sprintf("achievement flow failed at step '%s': %v", step, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowError represents an error during the achievement flow.
type AchievementFlowError struct {
	Step    AchievementFlowStep
	UserID  shared.UserID
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *AchievementFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AchievementFlowError) Unwrap() error {
	return e.Cause
}
