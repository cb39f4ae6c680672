// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"context"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON XP GAINED HANDLER
// Keeps the hot leaderboard in sync with XP awarded outside the mission
// and setup command paths, which refresh the board inline. Achievement
// bonuses granted during login streaks arrive here and would otherwise
// leave the board stale until the next full rebuild.
// ══════════════════════════════════════════════════════════════════════════════

// OnXPGainedHandler refreshes a user's leaderboard entry when XP changes.
type OnXPGainedHandler struct {
	progressRepo progression.Repository
	board        leaderboard.Cache
	publisher    shared.EventPublisher
	log          *logger.Logger

	// timeout bounds each refresh; the dispatcher calls Handle without
	// a request context.
	timeout time.Duration
}

// NewOnXPGainedHandler creates the handler.
func NewOnXPGainedHandler(
	progressRepo progression.Repository,
	board leaderboard.Cache,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *OnXPGainedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnXPGainedHandler{
		progressRepo: progressRepo,
		board:        board,
		publisher:    publisher,
		log:          log.With(logger.Component("on_xp_gained")),
		timeout:      10 * time.Second,
	}
}

// Handle implements the event handler contract used by the dispatcher.
func (h *OnXPGainedHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventXPGained {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	userID := shared.UserID(event.AggregateID())

	progress, err := h.progressRepo.GetByUserID(ctx, userID)
	if err != nil {
		h.log.Error("failed to load progress for leaderboard refresh",
			logger.UserID(string(userID)),
			logger.Err(err),
		)
		return err
	}

	oldRank, rankKnown := h.currentRank(ctx, userID)

	entry, err := leaderboard.NewEntry(
		progress.UserID,
		progress.DisplayName,
		progress.TotalPoints,
		progress.Level,
		shared.TierForScore(progress.SetupScore),
	)
	if err != nil {
		h.log.Error("failed to build leaderboard entry",
			logger.UserID(string(userID)),
			logger.Err(err),
		)
		return err
	}

	if err := h.board.UpdateScore(ctx, entry); err != nil {
		h.log.Error("failed to update leaderboard score",
			logger.UserID(string(userID)),
			logger.Err(err),
		)
		return err
	}

	if rankKnown && h.publisher != nil {
		if newRank, ok := h.currentRank(ctx, userID); ok && newRank != oldRank {
			_ = h.publisher.Publish(shared.NewRankChangedEvent(
				string(userID), int(oldRank), int(newRank),
			))
		}
	}

	return nil
}

// currentRank reads the user's rank, tolerating unranked users.
func (h *OnXPGainedHandler) currentRank(ctx context.Context, userID shared.UserID) (shared.Rank, bool) {
	rank, err := h.board.GetRank(ctx, userID)
	if err != nil {
		return 0, false
	}
	return rank, true
}
