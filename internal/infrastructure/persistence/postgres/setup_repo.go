// Package postgres implements the PostgreSQL persistence layer for the
// UPGRD progression engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/upgrd-hub/progression-engine/internal/domain/setup"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETUP PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SetupRepository implements setup.Repository for PostgreSQL.
type SetupRepository struct {
	conn *Connection
}

// NewSetupRepository creates a new SetupRepository.
func NewSetupRepository(conn *Connection) *SetupRepository {
	return &SetupRepository{conn: conn}
}

// Save creates or wholesale-replaces the user's hardware profile.
func (r *SetupRepository) Save(ctx context.Context, p *setup.Profile) error {
	query := `
		INSERT INTO setup_profiles (
			user_id, cpu, gpu, ram, storage, monitor, motherboard, cooling, saved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			cpu = EXCLUDED.cpu,
			gpu = EXCLUDED.gpu,
			ram = EXCLUDED.ram,
			storage = EXCLUDED.storage,
			monitor = EXCLUDED.monitor,
			motherboard = EXCLUDED.motherboard,
			cooling = EXCLUDED.cooling,
			saved_at = EXCLUDED.saved_at
	`

	_, err := r.conn.Exec(ctx, query,
		p.UserID.String(),
		p.CPU,
		p.GPU,
		p.RAM,
		p.Storage,
		p.Monitor,
		p.Motherboard,
		p.Cooling,
		p.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save setup profile: %w", err)
	}

	return nil
}

// GetByUserID returns the user's hardware profile.
func (r *SetupRepository) GetByUserID(ctx context.Context, userID shared.UserID) (*setup.Profile, error) {
	query := `
		SELECT user_id, cpu, gpu, ram, storage, monitor, motherboard, cooling, saved_at
		FROM setup_profiles
		WHERE user_id = $1
	`

	var (
		p         setup.Profile
		rawUserID string
	)
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&rawUserID,
		&p.CPU,
		&p.GPU,
		&p.RAM,
		&p.Storage,
		&p.Monitor,
		&p.Motherboard,
		&p.Cooling,
		&p.SavedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSetupNotFound
		}
		return nil, fmt.Errorf("failed to scan setup profile: %w", err)
	}

	p.UserID = shared.UserID(rawUserID)
	return &p, nil
}
