// Package redis implements Redis caching and the hot leaderboard for
// the UPGRD progression engine.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache provides leaderboard reads backed by Redis Sorted Sets.
// It implements the leaderboard.Cache domain interface.
//
// Architecture:
//   - Sorted Set "leaderboard:points" stores userID -> TotalPoints
//   - Hash "leaderboard:info" stores userID -> entry JSON
//
// Rebuild writes into shadow keys and swaps them in with RENAME, so
// readers never observe a half-built leaderboard. This design allows
// O(log N) rank lookups and O(log N + M) range queries.
type LeaderboardCache struct {
	cache *Cache
}

// Key patterns for leaderboard cache.
const (
	// keyLeaderboardPoints is the sorted set for TotalPoints rankings.
	keyLeaderboardPoints = PrefixLeaderboard + "points"

	// keyLeaderboardInfo is the hash for entry details.
	keyLeaderboardInfo = PrefixLeaderboard + "info"

	// keyRebuildSuffix marks the shadow keys used during Rebuild.
	keyRebuildSuffix = ":rebuild"
)

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// Compile-time interface check.
var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Wire format
// ─────────────────────────────────────────────────────────────────────────────

// cachedEntry is the JSON payload stored in the info hash.
type cachedEntry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	TotalPoints int       `json:"total_points"`
	Level       int       `json:"level"`
	Tier        string    `json:"tier"`
	RankChange  int       `json:"rank_change"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCached(e *leaderboard.Entry) cachedEntry {
	return cachedEntry{
		UserID:      e.UserID.String(),
		DisplayName: e.DisplayName,
		TotalPoints: int(e.TotalPoints),
		Level:       int(e.Level),
		Tier:        string(e.Tier),
		RankChange:  int(e.RankChange),
		UpdatedAt:   e.UpdatedAt,
	}
}

func (c cachedEntry) toDomain(rank shared.Rank) *leaderboard.Entry {
	return &leaderboard.Entry{
		Rank:        rank,
		UserID:      shared.UserID(c.UserID),
		DisplayName: c.DisplayName,
		TotalPoints: shared.XP(c.TotalPoints),
		Level:       shared.Level(c.Level),
		Tier:        shared.Tier(c.Tier),
		RankChange:  leaderboard.RankChange(c.RankChange),
		UpdatedAt:   c.UpdatedAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Rebuild atomically replaces the leaderboard with a fresh ranking.
// The ranking must already be sorted (leaderboard.Ranking.Sort).
func (l *LeaderboardCache) Rebuild(ctx context.Context, ranking *leaderboard.Ranking) error {
	if ranking == nil {
		return fmt.Errorf("leaderboard cache rebuild: ranking cannot be nil")
	}

	entries := ranking.All()

	shadowPoints := keyLeaderboardPoints + keyRebuildSuffix
	shadowInfo := keyLeaderboardInfo + keyRebuildSuffix

	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, shadowPoints, shadowInfo)

	if len(entries) > 0 {
		members := make([]redis.Z, 0, len(entries))
		payloads := make([]any, 0, len(entries)*2)

		for _, entry := range entries {
			data, err := json.Marshal(toCached(entry))
			if err != nil {
				return fmt.Errorf("leaderboard cache rebuild: marshal %s: %w", entry.UserID, err)
			}
			members = append(members, redis.Z{
				Score:  float64(entry.TotalPoints),
				Member: entry.UserID.String(),
			})
			payloads = append(payloads, entry.UserID.String(), data)
		}

		pipe.ZAdd(ctx, shadowPoints, members...)
		pipe.HSet(ctx, shadowInfo, payloads...)
		pipe.Rename(ctx, shadowPoints, keyLeaderboardPoints)
		pipe.Rename(ctx, shadowInfo, keyLeaderboardInfo)
	} else {
		// Nothing to swap in: clear the live keys instead.
		pipe.Del(ctx, keyLeaderboardPoints, keyLeaderboardInfo)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard cache rebuild: %w", err)
	}
	return nil
}

// UpdateScore updates a single user's points without a full rebuild.
// The entry's rank is recomputed on read; RankChange stays as-is until
// the next scheduled rebuild.
func (l *LeaderboardCache) UpdateScore(ctx context.Context, entry *leaderboard.Entry) error {
	if entry == nil {
		return fmt.Errorf("leaderboard cache update: entry cannot be nil")
	}

	data, err := json.Marshal(toCached(entry))
	if err != nil {
		return fmt.Errorf("leaderboard cache update: marshal %s: %w", entry.UserID, err)
	}

	pipe := l.cache.Client().TxPipeline()
	pipe.ZAdd(ctx, keyLeaderboardPoints, redis.Z{
		Score:  float64(entry.TotalPoints),
		Member: entry.UserID.String(),
	})
	pipe.HSet(ctx, keyLeaderboardInfo, entry.UserID.String(), data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard cache update: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Top returns the first n entries.
func (l *LeaderboardCache) Top(ctx context.Context, n int) ([]*leaderboard.Entry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("leaderboard cache top: n must be positive, got %d", n)
	}

	entries, err := l.rangeByRank(ctx, 0, int64(n)-1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, shared.ErrLeaderboardEmpty
	}
	return entries, nil
}

// Page returns a page of entries (1-based page numbering).
// An out-of-range page yields an empty slice, not an error.
func (l *LeaderboardCache) Page(ctx context.Context, page, pageSize int) ([]*leaderboard.Entry, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("leaderboard cache page: invalid page params %d/%d", page, pageSize)
	}

	from := int64(page-1) * int64(pageSize)
	return l.rangeByRank(ctx, from, from+int64(pageSize)-1)
}

// GetRank returns the user's 1-based position.
func (l *LeaderboardCache) GetRank(ctx context.Context, userID shared.UserID) (shared.Rank, error) {
	idx, err := l.cache.Client().ZRevRank(ctx, keyLeaderboardPoints, userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, shared.ErrUserNotRanked
	}
	if err != nil {
		return 0, fmt.Errorf("leaderboard cache rank: %w", err)
	}
	return shared.Rank(idx + 1), nil
}

// Around returns a window of entries centred on the user
// (rangeSize entries above and below, clamped at the edges).
func (l *LeaderboardCache) Around(ctx context.Context, userID shared.UserID, rangeSize int) ([]*leaderboard.Entry, error) {
	if rangeSize < 0 {
		rangeSize = 0
	}

	idx, err := l.cache.Client().ZRevRank(ctx, keyLeaderboardPoints, userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrUserNotRanked
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache around: %w", err)
	}

	from := idx - int64(rangeSize)
	if from < 0 {
		from = 0
	}
	return l.rangeByRank(ctx, from, idx+int64(rangeSize))
}

// Count returns the number of ranked users.
func (l *LeaderboardCache) Count(ctx context.Context) (int, error) {
	n, err := l.cache.Client().ZCard(ctx, keyLeaderboardPoints).Result()
	if err != nil {
		return 0, fmt.Errorf("leaderboard cache count: %w", err)
	}
	return int(n), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

// rangeByRank fetches entries in positions [from, to] of the sorted set
// (0-based, descending by points) and hydrates them from the info hash.
func (l *LeaderboardCache) rangeByRank(ctx context.Context, from, to int64) ([]*leaderboard.Entry, error) {
	ids, err := l.cache.Client().ZRevRange(ctx, keyLeaderboardPoints, from, to).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache range: %w", err)
	}
	if len(ids) == 0 {
		return []*leaderboard.Entry{}, nil
	}

	raw, err := l.cache.Client().HMGet(ctx, keyLeaderboardInfo, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache range: hydrate: %w", err)
	}

	entries := make([]*leaderboard.Entry, 0, len(ids))
	for i, id := range ids {
		rank := shared.Rank(from + int64(i) + 1)

		// A member can briefly lack a payload if UpdateScore raced
		// a rebuild. Fall back to a skeleton entry rather than fail.
		str, ok := raw[i].(string)
		if !ok || str == "" {
			entries = append(entries, &leaderboard.Entry{
				Rank:   rank,
				UserID: shared.UserID(id),
			})
			continue
		}

		var cached cachedEntry
		if err := json.Unmarshal([]byte(str), &cached); err != nil {
			return nil, fmt.Errorf("leaderboard cache range: unmarshal %s: %w", id, err)
		}
		entries = append(entries, cached.toDomain(rank))
	}
	return entries, nil
}

// PreviousRanks returns the UserID -> rank mapping of the current
// leaderboard. The rebuild job feeds it to Ranking.ApplyPreviousRanks
// so entries carry their movement since the last rebuild.
func (l *LeaderboardCache) PreviousRanks(ctx context.Context) (map[shared.UserID]shared.Rank, error) {
	ids, err := l.cache.Client().ZRevRange(ctx, keyLeaderboardPoints, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache previous ranks: %w", err)
	}

	ranks := make(map[shared.UserID]shared.Rank, len(ids))
	for i, id := range ids {
		ranks[shared.UserID(id)] = shared.Rank(i + 1)
	}
	return ranks, nil
}
