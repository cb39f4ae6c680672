package command

import (
	"context"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/application/saga"
	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/setup"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/keyedmutex"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE SETUP COMMAND
// Persists the user's hardware profile wholesale and rescores it.
// Saving the same profile twice yields the same score and tier.
// ══════════════════════════════════════════════════════════════════════════════

// SaveSetupCommand contains the hardware profile to save.
// Empty fields are allowed and score zero for their category.
type SaveSetupCommand struct {
	// UserID is the stable identifier of the user.
	UserID string

	// DisplayName updates the stored display name when non-empty.
	DisplayName string

	CPU         string
	GPU         string
	RAM         string
	Storage     string
	Monitor     string
	Motherboard string
	Cooling     string
}

// Validate validates the command.
func (c SaveSetupCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// SaveSetupResult contains the result of saving a setup.
type SaveSetupResult struct {
	// Profile is the stored hardware profile.
	Profile *setup.Profile

	// Score is the computed setup score with per-category breakdown.
	Score setup.Score

	// PreviousTier is the tier before this save.
	PreviousTier shared.Tier

	// TierChanged indicates the save moved the user to another tier.
	TierChanged bool

	// Achievements unlocked by this save (setup milestones).
	Achievements *saga.AchievementFlowResult

	// Progress is the updated progression record.
	Progress *progression.UserProgress
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SaveSetupHandler handles the SaveSetupCommand.
type SaveSetupHandler struct {
	progressRepo    progression.Repository
	setupRepo       setup.Repository
	aggregator      *setup.Aggregator
	achievementFlow *saga.AchievementFlow
	leaderboard     leaderboard.Cache
	eventBus        shared.EventPublisher
	locks           *keyedmutex.KeyedMutex
	log             *logger.Logger
}

// NewSaveSetupHandler creates a new SaveSetupHandler.
func NewSaveSetupHandler(
	progressRepo progression.Repository,
	setupRepo setup.Repository,
	achievementFlow *saga.AchievementFlow,
	leaderboardCache leaderboard.Cache,
	eventBus shared.EventPublisher,
	locks *keyedmutex.KeyedMutex,
	log *logger.Logger,
) *SaveSetupHandler {
	return &SaveSetupHandler{
		progressRepo:    progressRepo,
		setupRepo:       setupRepo,
		aggregator:      setup.NewAggregator(),
		achievementFlow: achievementFlow,
		leaderboard:     leaderboardCache,
		eventBus:        eventBus,
		locks:           locks,
		log:             log,
	}
}

// Handle executes the save setup command.
func (h *SaveSetupHandler) Handle(ctx context.Context, cmd SaveSetupCommand) (*SaveSetupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("save_setup: %w", err)
	}

	var result *SaveSetupResult
	err := h.locks.WithLockContext(ctx, cmd.UserID, func(ctx context.Context) error {
		progress, _, err := loadOrCreateProgress(ctx, h.progressRepo, h.eventBus,
			shared.UserID(cmd.UserID), cmd.DisplayName)
		if err != nil {
			return err
		}

		profile := &setup.Profile{
			UserID:      shared.UserID(cmd.UserID),
			CPU:         cmd.CPU,
			GPU:         cmd.GPU,
			RAM:         cmd.RAM,
			Storage:     cmd.Storage,
			Monitor:     cmd.Monitor,
			Motherboard: cmd.Motherboard,
			Cooling:     cmd.Cooling,
			SavedAt:     time.Now().UTC(),
		}
		if err := h.setupRepo.Save(ctx, profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}

		score := h.aggregator.Aggregate(profile)

		oldScore := progress.SetupScore
		oldTier := shared.TierForScore(oldScore)
		progress.SetupScore = score.Total

		if h.eventBus != nil {
			_ = h.eventBus.Publish(shared.NewSetupScoredEvent(cmd.UserID, oldScore, score.Total, score.Tier.String()))
			if score.Tier != oldTier {
				_ = h.eventBus.Publish(shared.NewTierChangedEvent(cmd.UserID, oldTier.String(), score.Tier.String()))
			}
		}

		achievements, err := h.achievementFlow.Run(ctx, progress)
		if err != nil {
			return err
		}

		touch(progress)
		if err := h.progressRepo.Update(ctx, progress); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		h.refreshLeaderboard(ctx, progress, score.Tier)

		h.log.Info("setup scored",
			logger.UserID(cmd.UserID),
			logger.SetupScore(score.Total),
			logger.TierName(score.Tier.String()),
		)

		result = &SaveSetupResult{
			Profile:      profile,
			Score:        score,
			PreviousTier: oldTier,
			TierChanged:  score.Tier != oldTier,
			Achievements: achievements,
			Progress:     progress,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save_setup: %w", err)
	}
	return result, nil
}

// refreshLeaderboard pushes the user's points into the hot leaderboard.
// Best effort: the scheduled rebuild will converge the board anyway.
func (h *SaveSetupHandler) refreshLeaderboard(ctx context.Context, progress *progression.UserProgress, tier shared.Tier) {
	if h.leaderboard == nil {
		return
	}
	entry, err := leaderboard.NewEntry(progress.UserID, progress.DisplayName,
		progress.TotalPoints, progress.Level, tier)
	if err != nil {
		return
	}
	if err := h.leaderboard.UpdateScore(ctx, entry); err != nil {
		h.log.Warn("leaderboard refresh failed", logger.UserID(progress.UserID.String()), logger.Err(err))
	}
}
