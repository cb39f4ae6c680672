// Package jobs contains background jobs run by the scheduler.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/leaderboard"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

// RankingCache is the leaderboard cache as seen by the rebuild job. On top
// of the domain interface it exposes the previous rank snapshot, which the
// job feeds back into the ranking to compute rank deltas.
type RankingCache interface {
	leaderboard.Cache

	PreviousRanks(ctx context.Context) (map[shared.UserID]shared.Rank, error)
}

// RebuildLeaderboardConfig configures the leaderboard rebuild job.
type RebuildLeaderboardConfig struct {
	// Timeout bounds a single rebuild run.
	Timeout time.Duration

	// BatchSize is the page size used when loading user progress.
	BatchSize int
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		Timeout:   2 * time.Minute,
		BatchSize: 500,
	}
}

// RebuildStats describes the outcome of the last rebuild run.
type RebuildStats struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	TotalUsers  int
	RankedUsers int
	Err         error
}

// RebuildLeaderboardJob rebuilds the Redis leaderboard from the persisted
// progression state. It loads every user's progress, sorts them into a
// fresh ranking, applies rank deltas against the previous board and swaps
// the cache atomically.
type RebuildLeaderboardJob struct {
	progressRepo progression.Repository
	cache        RankingCache
	publisher    shared.EventPublisher
	config       RebuildLeaderboardConfig
	log          *logger.Logger

	lastStats atomic.Value // RebuildStats
}

// NewRebuildLeaderboardJob creates the rebuild job.
func NewRebuildLeaderboardJob(
	progressRepo progression.Repository,
	cache RankingCache,
	publisher shared.EventPublisher,
	config RebuildLeaderboardConfig,
	log *logger.Logger,
) *RebuildLeaderboardJob {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRebuildLeaderboardConfig().Timeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRebuildLeaderboardConfig().BatchSize
	}
	if log == nil {
		log = logger.Default()
	}
	return &RebuildLeaderboardJob{
		progressRepo: progressRepo,
		cache:        cache,
		publisher:    publisher,
		config:       config,
		log:          log.With(logger.Component("rebuild_leaderboard")),
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the Redis leaderboard from persisted user progression"
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := RebuildStats{StartedAt: time.Now()}
	defer func() {
		stats.FinishedAt = time.Now()
		stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	ranking, err := j.buildRanking(ctx)
	if err != nil {
		stats.Err = err
		return err
	}
	stats.TotalUsers = ranking.Count()

	ranking.Sort()

	previous, err := j.cache.PreviousRanks(ctx)
	if err != nil {
		// Deltas are cosmetic, the rebuild itself still proceeds.
		j.log.Warn("failed to load previous ranks, rank deltas will be reset",
			logger.Err(err),
		)
	} else {
		ranking.ApplyPreviousRanks(previous)
	}

	if err := j.cache.Rebuild(ctx, ranking); err != nil {
		stats.Err = err
		return fmt.Errorf("rebuild leaderboard cache: %w", err)
	}
	stats.RankedUsers = ranking.Count()

	if j.publisher != nil {
		event := shared.NewLeaderboardRebuiltEvent(ranking.Count(), time.Since(stats.StartedAt))
		if err := j.publisher.Publish(event); err != nil {
			j.log.Warn("failed to publish leaderboard rebuilt event", logger.Err(err))
		}
	}

	j.log.Info("leaderboard rebuilt",
		logger.Int("users", ranking.Count()),
		logger.Latency(time.Since(stats.StartedAt)),
	)
	return nil
}

// buildRanking pages through all persisted progress and assembles entries.
func (j *RebuildLeaderboardJob) buildRanking(ctx context.Context) (*leaderboard.Ranking, error) {
	ranking := leaderboard.NewRanking()

	opts := progression.DefaultListOptions().WithLimit(j.config.BatchSize)
	for offset := 0; ; offset += j.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := j.progressRepo.GetAll(ctx, opts.WithOffset(offset))
		if err != nil {
			return nil, fmt.Errorf("load user progress (offset %d): %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		for _, p := range page {
			entry, err := leaderboard.NewEntry(
				p.UserID,
				p.DisplayName,
				p.TotalPoints,
				p.Level,
				shared.TierForScore(p.SetupScore),
			)
			if err != nil {
				j.log.Warn("skipping invalid leaderboard entry",
					logger.UserID(string(p.UserID)),
					logger.Err(err),
				)
				continue
			}
			if err := ranking.Add(entry); err != nil {
				j.log.Warn("skipping duplicate leaderboard entry",
					logger.UserID(string(p.UserID)),
					logger.Err(err),
				)
			}
		}

		if len(page) < j.config.BatchSize {
			break
		}
	}

	return ranking, nil
}

// LastRebuildStats returns the stats of the most recent run, if any.
func (j *RebuildLeaderboardJob) LastRebuildStats() (RebuildStats, bool) {
	v := j.lastStats.Load()
	if v == nil {
		return RebuildStats{}, false
	}
	return v.(RebuildStats), true
}
