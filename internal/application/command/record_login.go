package command

import (
	"context"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/application/saga"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/keyedmutex"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LOGIN COMMAND
// Tracks daily login streaks. A second login on the same São Paulo
// calendar day is a no-op; a missed day resets the streak to 1.
// ══════════════════════════════════════════════════════════════════════════════

// RecordLoginCommand contains the data to record a login.
type RecordLoginCommand struct {
	// UserID is the stable identifier of the user.
	UserID string

	// DisplayName updates the stored display name when non-empty.
	DisplayName string

	// At is when the login happened (defaults to now if zero).
	At time.Time
}

// Validate validates the command.
func (c RecordLoginCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// RecordLoginResult contains the result of recording a login.
type RecordLoginResult struct {
	// Progress is the updated progression record.
	Progress *progression.UserProgress

	// Counted indicates whether this login extended or started a streak.
	Counted bool

	// StreakBroken indicates a missed day reset the streak.
	StreakBroken bool

	// PreviousStreak is the streak length before it broke.
	PreviousStreak int

	// Achievements unlocked by this login (streak milestones).
	Achievements *saga.AchievementFlowResult
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordLoginHandler handles the RecordLoginCommand.
type RecordLoginHandler struct {
	progressRepo    progression.Repository
	ledger          *progression.Ledger
	achievementFlow *saga.AchievementFlow
	eventBus        shared.EventPublisher
	locks           *keyedmutex.KeyedMutex
}

// NewRecordLoginHandler creates a new RecordLoginHandler.
func NewRecordLoginHandler(
	progressRepo progression.Repository,
	achievementFlow *saga.AchievementFlow,
	eventBus shared.EventPublisher,
	locks *keyedmutex.KeyedMutex,
) *RecordLoginHandler {
	return &RecordLoginHandler{
		progressRepo:    progressRepo,
		ledger:          progression.NewLedger(),
		achievementFlow: achievementFlow,
		eventBus:        eventBus,
		locks:           locks,
	}
}

// Handle executes the record login command.
func (h *RecordLoginHandler) Handle(ctx context.Context, cmd RecordLoginCommand) (*RecordLoginResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_login: %w", err)
	}

	at := cmd.At
	if at.IsZero() {
		at = timeutil.Now()
	}

	var result *RecordLoginResult
	err := h.locks.WithLockContext(ctx, cmd.UserID, func(ctx context.Context) error {
		progress, _, err := loadOrCreateProgress(ctx, h.progressRepo, h.eventBus,
			shared.UserID(cmd.UserID), cmd.DisplayName)
		if err != nil {
			return err
		}
		if cmd.DisplayName != "" {
			progress.DisplayName = cmd.DisplayName
		}

		login, err := h.ledger.RecordLogin(progress, at)
		if err != nil {
			return err
		}
		progress = login.Progress

		result = &RecordLoginResult{
			Counted:        login.Counted,
			StreakBroken:   login.StreakBroken,
			PreviousStreak: login.PreviousStreak,
		}

		if login.Counted {
			if h.eventBus != nil {
				_ = h.eventBus.Publish(shared.NewLoginRecordedEvent(cmd.UserID, progress.CurrentStreak))
				if login.StreakBroken {
					daysMissed := timeutil.DaysBetween(login.PreviousLoginAt, at) - 1
					_ = h.eventBus.Publish(shared.NewStreakBrokenEvent(cmd.UserID, login.PreviousStreak, daysMissed))
				}
			}

			// Streak milestones may have been crossed.
			achievements, err := h.achievementFlow.Run(ctx, progress)
			if err != nil {
				return err
			}
			result.Achievements = achievements

			touch(progress)
			if err := h.progressRepo.Update(ctx, progress); err != nil {
				return fmt.Errorf("update progress: %w", err)
			}
		}

		result.Progress = progress
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record_login: %w", err)
	}
	return result, nil
}
