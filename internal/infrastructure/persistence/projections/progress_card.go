// Package projections implements read models for the CQRS read side.
// Projections are denormalized views optimized for fast reads and are
// refreshed lazily, with domain events invalidating stale entries.
package projections

import (
	"context"
	"errors"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	redisinfra "github.com/upgrd-hub/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CARD - Denormalized Read Model for User Progress
// ══════════════════════════════════════════════════════════════════════════════

// ProgressCard is a denormalized snapshot of a user's progression state,
// combining level, XP, setup tier, streak and rank data into a single
// structure that can be rendered without touching Postgres.
type ProgressCard struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`

	Level           int    `json:"level"`
	LevelTitle      string `json:"level_title"`
	XP              int    `json:"xp"`
	XPToNextLevel   int    `json:"xp_to_next_level"`
	ProgressPercent int    `json:"progress_percent"`
	TotalPoints     int    `json:"total_points"`

	SetupScore      int    `json:"setup_score"`
	Tier            string `json:"tier"`
	TierDisplayName string `json:"tier_display_name"`

	CurrentStreak int `json:"current_streak"`
	BestStreak    int `json:"best_streak"`

	// Rank is the global leaderboard position, zero when unranked.
	Rank int `json:"rank"`

	AchievementsUnlocked int `json:"achievements_unlocked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Card store
// ──────────────────────────────────────────────────────────────────────────────

// ErrCardNotCached is returned when no card is cached for the user.
var ErrCardNotCached = errors.New("projections: progress card not cached")

// ProgressCardStore caches progress cards in Redis. Readers follow the
// cache-aside pattern: a miss is rebuilt from the repositories by the
// caller and stored back through Put.
type ProgressCardStore struct {
	cache *redisinfra.Cache
	ttl   time.Duration
}

// NewProgressCardStore creates a card store over the shared Redis cache.
func NewProgressCardStore(cache *redisinfra.Cache) *ProgressCardStore {
	return &ProgressCardStore{
		cache: cache,
		ttl:   redisinfra.TTLProgressCache,
	}
}

// Get returns the cached card for the user, or ErrCardNotCached.
func (s *ProgressCardStore) Get(ctx context.Context, userID shared.UserID) (*ProgressCard, error) {
	var card ProgressCard
	err := s.cache.Get(ctx, redisinfra.ProgressKey(string(userID)), &card)
	if err != nil {
		if errors.Is(err, redisinfra.ErrCacheMiss) {
			return nil, ErrCardNotCached
		}
		return nil, err
	}
	return &card, nil
}

// Put stores the card with the standard progress TTL.
func (s *ProgressCardStore) Put(ctx context.Context, card *ProgressCard) error {
	if card.UpdatedAt.IsZero() {
		card.UpdatedAt = time.Now().UTC()
	}
	return s.cache.Set(ctx, redisinfra.ProgressKey(card.UserID), card, s.ttl)
}

// Invalidate drops the cached card for the user.
func (s *ProgressCardStore) Invalidate(ctx context.Context, userID shared.UserID) error {
	return s.cache.Delete(ctx, redisinfra.ProgressKey(string(userID)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Event-driven invalidation
// ──────────────────────────────────────────────────────────────────────────────

// ProgressCardProjector invalidates cached cards when progression events
// arrive, so the next read rebuilds the card from fresh data.
type ProgressCardProjector struct {
	store *ProgressCardStore
	log   *logger.Logger
}

// NewProgressCardProjector creates the projector.
func NewProgressCardProjector(store *ProgressCardStore, log *logger.Logger) *ProgressCardProjector {
	if log == nil {
		log = logger.Default()
	}
	return &ProgressCardProjector{
		store: store,
		log:   log.With(logger.Component("progress_card_projector")),
	}
}

// HandleEvent implements the event handler contract used by the dispatcher.
func (p *ProgressCardProjector) HandleEvent(event shared.Event) error {
	switch event.EventType() {
	case shared.EventXPGained,
		shared.EventLevelUp,
		shared.EventLoginRecorded,
		shared.EventStreakBroken,
		shared.EventSetupScored,
		shared.EventTierChanged,
		shared.EventMissionCompleted,
		shared.EventAchievementUnlocked,
		shared.EventRankChanged:
	default:
		return nil
	}

	userID := shared.UserID(event.AggregateID())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.store.Invalidate(ctx, userID); err != nil {
		// Stale cards expire by TTL anyway, so a failed invalidation is
		// logged and swallowed.
		p.log.Warn("failed to invalidate progress card",
			logger.UserID(string(userID)),
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
	return nil
}
