// Package postgres implements the PostgreSQL persistence layer for the
// UPGRD progression engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MISSION COMPLETION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRepository implements mission.CompletionRepository for
// PostgreSQL. The table's unique constraint on (user, mission,
// period_start) makes the store the arbiter of "once per period".
type CompletionRepository struct {
	conn *Connection
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(conn *Connection) *CompletionRepository {
	return &CompletionRepository{conn: conn}
}

// Create persists a completion.
func (r *CompletionRepository) Create(ctx context.Context, c *mission.Completion) error {
	query := `
		INSERT INTO mission_completions (
			id, user_id, mission_id, period, period_start, reward_xp, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		c.UserID.String(),
		c.MissionID.String(),
		string(c.Period),
		c.PeriodStart,
		c.RewardXP.Int(),
		c.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyCompleted
		}
		return fmt.Errorf("failed to create completion: %w", err)
	}

	return nil
}

// Delete removes a completion by record ID. Used to roll back a
// completion whose XP award could not be persisted.
func (r *CompletionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx,
		"DELETE FROM mission_completions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete completion: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetForPeriod returns the user's completions whose period started at
// periodStart. No completions is an empty slice, not an error.
func (r *CompletionRepository) GetForPeriod(ctx context.Context, userID shared.UserID, periodStart time.Time) ([]*mission.Completion, error) {
	query := `
		SELECT id, user_id, mission_id, period, period_start, reward_xp, completed_at
		FROM mission_completions
		WHERE user_id = $1 AND period_start = $2
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), periodStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var completions []*mission.Completion
	for rows.Next() {
		var (
			c         mission.Completion
			rawUserID string
			missionID string
			period    string
			reward    int
		)
		if err := rows.Scan(&c.ID, &rawUserID, &missionID, &period, &c.PeriodStart, &reward, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.UserID = shared.UserID(rawUserID)
		c.MissionID = shared.MissionID(missionID)
		c.Period = shared.Period(period)
		c.RewardXP = shared.XP(reward)
		completions = append(completions, &c)
	}

	return completions, rows.Err()
}

// CountByUser returns the user's all-time completion count.
func (r *CompletionRepository) CountByUser(ctx context.Context, userID shared.UserID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM mission_completions WHERE user_id = $1",
		userID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return count, nil
}

// CountByUserAndPeriodType returns the user's all-time completion
// count for one period type.
func (r *CompletionRepository) CountByUserAndPeriodType(ctx context.Context, userID shared.UserID, p shared.Period) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM mission_completions WHERE user_id = $1 AND period = $2",
		userID.String(), string(p),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions by period type: %w", err)
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROOF REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProofRepository implements mission.ProofRepository for PostgreSQL.
type ProofRepository struct {
	conn *Connection
}

// NewProofRepository creates a new ProofRepository.
func NewProofRepository(conn *Connection) *ProofRepository {
	return &ProofRepository{conn: conn}
}

// Create persists a new proof submission.
func (r *ProofRepository) Create(ctx context.Context, s *mission.ProofSubmission) error {
	query := `
		INSERT INTO proof_submissions (
			id, user_id, mission_id, period_start, proof, status,
			verifier_note, submitted_at, reviewed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.UserID.String(),
		s.MissionID.String(),
		s.PeriodStart,
		s.Proof,
		string(s.Status),
		s.VerifierNote,
		s.SubmittedAt,
		nullableTime(s.ReviewedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create proof submission: %w", err)
	}

	return nil
}

// Update persists a verdict change.
func (r *ProofRepository) Update(ctx context.Context, s *mission.ProofSubmission) error {
	query := `
		UPDATE proof_submissions SET
			status = $1,
			verifier_note = $2,
			reviewed_at = $3
		WHERE id = $4
	`

	result, err := r.conn.Exec(ctx, query,
		string(s.Status),
		s.VerifierNote,
		nullableTime(s.ReviewedAt),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update proof submission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// GetPending returns the user's pending submission for a mission in
// the given period, or shared.ErrNotFound.
func (r *ProofRepository) GetPending(ctx context.Context, userID shared.UserID, missionID shared.MissionID, periodStart time.Time) (*mission.ProofSubmission, error) {
	query := `
		SELECT id, user_id, mission_id, period_start, proof, status,
			   verifier_note, submitted_at, reviewed_at
		FROM proof_submissions
		WHERE user_id = $1 AND mission_id = $2 AND period_start = $3 AND status = 'pending'
		ORDER BY submitted_at DESC
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, userID.String(), missionID.String(), periodStart)
	s, err := r.scanSubmission(row)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetForPeriod returns all submissions the user made in the period.
func (r *ProofRepository) GetForPeriod(ctx context.Context, userID shared.UserID, periodStart time.Time) ([]*mission.ProofSubmission, error) {
	query := `
		SELECT id, user_id, mission_id, period_start, proof, status,
			   verifier_note, submitted_at, reviewed_at
		FROM proof_submissions
		WHERE user_id = $1 AND period_start = $2
		ORDER BY submitted_at
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), periodStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query proof submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*mission.ProofSubmission
	for rows.Next() {
		s, err := r.scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}

	return submissions, rows.Err()
}

func (r *ProofRepository) scanSubmission(row scannable) (*mission.ProofSubmission, error) {
	var (
		s          mission.ProofSubmission
		rawUserID  string
		missionID  string
		status     string
		reviewedAt *time.Time
	)

	err := row.Scan(
		&s.ID,
		&rawUserID,
		&missionID,
		&s.PeriodStart,
		&s.Proof,
		&status,
		&s.VerifierNote,
		&s.SubmittedAt,
		&reviewedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan proof submission: %w", err)
	}

	s.UserID = shared.UserID(rawUserID)
	s.MissionID = shared.MissionID(missionID)
	s.Status = mission.ProofStatus(status)
	if reviewedAt != nil {
		s.ReviewedAt = *reviewedAt
	}

	return &s, nil
}

// scannable covers both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}
