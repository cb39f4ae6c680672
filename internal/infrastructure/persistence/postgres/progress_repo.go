// Package postgres implements the PostgreSQL persistence layer for the
// UPGRD progression engine.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progression.Repository for PostgreSQL.
// Achievements live in a separate table and are loaded into the
// aggregate's map on every read.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new progression record.
func (r *ProgressRepository) Create(ctx context.Context, p *progression.UserProgress) error {
	query := `
		INSERT INTO user_progress (
			user_id, display_name, level, xp, xp_to_next_level, total_points,
			setup_score, current_streak, best_streak, last_login_at,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		p.UserID.String(),
		p.DisplayName,
		p.Level.Int(),
		p.XP.Int(),
		p.XPToNextLevel.Int(),
		p.TotalPoints.Int(),
		p.SetupScore,
		p.CurrentStreak,
		p.BestStreak,
		nullableTime(p.LastLoginAt),
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create progress: %w", err)
	}

	return nil
}

// GetByUserID returns a progression record by user ID.
func (r *ProgressRepository) GetByUserID(ctx context.Context, userID shared.UserID) (*progression.UserProgress, error) {
	query := `
		SELECT user_id, display_name, level, xp, xp_to_next_level, total_points,
			   setup_score, current_streak, best_streak, last_login_at,
			   version, created_at, updated_at
		FROM user_progress
		WHERE user_id = $1
	`

	row := r.conn.QueryRow(ctx, query, userID.String())
	p, err := r.scanProgress(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadAchievements(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update persists a new aggregate state using optimistic locking:
// the row version must still match the version the aggregate was
// loaded with. Achievement unlocks are upserted alongside.
func (r *ProgressRepository) Update(ctx context.Context, p *progression.UserProgress) error {
	query := `
		UPDATE user_progress SET
			display_name = $1,
			level = $2,
			xp = $3,
			xp_to_next_level = $4,
			total_points = $5,
			setup_score = $6,
			current_streak = $7,
			best_streak = $8,
			last_login_at = $9,
			version = version + 1,
			updated_at = $10
		WHERE user_id = $11 AND version = $12
	`

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query,
			p.DisplayName,
			p.Level.Int(),
			p.XP.Int(),
			p.XPToNextLevel.Int(),
			p.TotalPoints.Int(),
			p.SetupScore,
			p.CurrentStreak,
			p.BestStreak,
			nullableTime(p.LastLoginAt),
			time.Now().UTC(),
			p.UserID.String(),
			p.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
		if result.RowsAffected() == 0 {
			exists, err := r.exists(ctx, tx, p.UserID)
			if err != nil {
				return err
			}
			if !exists {
				return shared.ErrProgressNotFound
			}
			return shared.ErrOptimisticLock
		}

		for id, at := range p.Achievements {
			_, err := tx.Exec(ctx, `
				INSERT INTO achievement_unlocks (user_id, achievement_id, unlocked_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, achievement_id) DO NOTHING
			`, p.UserID.String(), id.String(), at)
			if err != nil {
				return fmt.Errorf("failed to save achievement unlock: %w", err)
			}
		}

		p.Version++
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns all progression records with pagination. Used by the
// leaderboard rebuild job; achievements are not loaded.
func (r *ProgressRepository) GetAll(ctx context.Context, opts progression.ListOptions) ([]*progression.UserProgress, error) {
	sortBy := "total_points"
	switch opts.SortBy {
	case "total_points", "level", "created_at", "updated_at":
		sortBy = opts.SortBy
	}
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT user_id, display_name, level, xp, xp_to_next_level, total_points,
			   setup_score, current_streak, best_streak, last_login_at,
			   version, created_at, updated_at
		FROM user_progress
		ORDER BY %s %s
		LIMIT $1 OFFSET $2
	`, sortBy, direction)

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress records: %w", err)
	}
	defer rows.Close()

	var records []*progression.UserProgress
	for rows.Next() {
		p, err := r.scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}

	return records, rows.Err()
}

// Count returns the total number of users.
func (r *ProgressRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM user_progress").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count progress records: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// XP Journal
// ─────────────────────────────────────────────────────────────────────────────

// SaveXPChange appends an entry to the XP journal.
func (r *ProgressRepository) SaveXPChange(ctx context.Context, entry progression.XPHistoryEntry) error {
	query := `
		INSERT INTO xp_history (id, user_id, delta, total_after, reason, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		entry.ID,
		entry.UserID.String(),
		entry.Delta.Int(),
		entry.TotalAfter.Int(),
		entry.Reason,
		entry.SourceID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save xp change: %w", err)
	}

	return nil
}

// GetXPHistory returns journal entries in [from, to), newest first.
func (r *ProgressRepository) GetXPHistory(ctx context.Context, userID shared.UserID, from, to time.Time) ([]progression.XPHistoryEntry, error) {
	query := `
		SELECT id, user_id, delta, total_after, reason, source_id, created_at
		FROM xp_history
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query xp history: %w", err)
	}
	defer rows.Close()

	var entries []progression.XPHistoryEntry
	for rows.Next() {
		var (
			entry    progression.XPHistoryEntry
			rawID    string
			delta    int
			after    int
			sourceID *string
		)
		if err := rows.Scan(&entry.ID, &rawID, &delta, &after, &entry.Reason, &sourceID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp history row: %w", err)
		}
		entry.UserID = shared.UserID(rawID)
		entry.Delta = shared.XP(delta)
		entry.TotalAfter = shared.XP(after)
		if sourceID != nil {
			entry.SourceID = *sourceID
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *ProgressRepository) scanProgress(row pgx.Row) (*progression.UserProgress, error) {
	var (
		p           progression.UserProgress
		rawUserID   string
		level       int
		xp          int
		toNext      int
		total       int
		lastLoginAt *time.Time
	)

	err := row.Scan(
		&rawUserID,
		&p.DisplayName,
		&level,
		&xp,
		&toNext,
		&total,
		&p.SetupScore,
		&p.CurrentStreak,
		&p.BestStreak,
		&lastLoginAt,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}

	p.UserID = shared.UserID(rawUserID)
	p.Level = shared.Level(level)
	p.XP = shared.XP(xp)
	p.XPToNextLevel = shared.XP(toNext)
	p.TotalPoints = shared.XP(total)
	if lastLoginAt != nil {
		p.LastLoginAt = *lastLoginAt
	}
	p.Achievements = make(map[shared.AchievementID]time.Time)

	return &p, nil
}

func (r *ProgressRepository) loadAchievements(ctx context.Context, p *progression.UserProgress) error {
	rows, err := r.conn.Query(ctx, `
		SELECT achievement_id, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = $1
	`, p.UserID.String())
	if err != nil {
		return fmt.Errorf("failed to query achievement unlocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return fmt.Errorf("failed to scan achievement unlock: %w", err)
		}
		p.Achievements[shared.AchievementID(strings.TrimSpace(id))] = at
	}

	return rows.Err()
}

func (r *ProgressRepository) exists(ctx context.Context, tx pgx.Tx, userID shared.UserID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM user_progress WHERE user_id = $1)",
		userID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check progress existence: %w", err)
	}
	return exists, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
