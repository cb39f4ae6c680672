// Package postgres implements the PostgreSQL persistence layer for the
// UPGRD progression engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create user progression tables
-- Version: 001

-- Main progression table: one row per user, created on first contact
-- and never deleted.
CREATE TABLE IF NOT EXISTS user_progress (
    user_id VARCHAR(64) PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 0,
    xp INTEGER NOT NULL DEFAULT 0,
    xp_to_next_level INTEGER NOT NULL DEFAULT 1000,
    total_points INTEGER NOT NULL DEFAULT 0,
    setup_score INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_login_at TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_level CHECK (level >= 0),
    CONSTRAINT valid_xp CHECK (xp >= 0 AND xp < xp_to_next_level),
    CONSTRAINT valid_total_points CHECK (total_points >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND best_streak >= current_streak)
);

-- Leaderboard rebuild walks all users ordered by points.
CREATE INDEX IF NOT EXISTS idx_user_progress_total_points ON user_progress(total_points DESC);

-- Unlocked achievements: one row per (user, achievement), written once.
CREATE TABLE IF NOT EXISTS achievement_unlocks (
    user_id VARCHAR(64) NOT NULL REFERENCES user_progress(user_id) ON DELETE CASCADE,
    achievement_id VARCHAR(50) NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, achievement_id)
);

-- XP journal: append-only record of every award.
CREATE TABLE IF NOT EXISTS xp_history (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES user_progress(user_id) ON DELETE CASCADE,
    delta INTEGER NOT NULL,
    total_after INTEGER NOT NULL,
    reason VARCHAR(50) NOT NULL,
    source_id VARCHAR(100),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_delta CHECK (delta > 0)
);

CREATE INDEX IF NOT EXISTS idx_xp_history_user_id ON xp_history(user_id);
CREATE INDEX IF NOT EXISTS idx_xp_history_user_date ON xp_history(user_id, created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS xp_history;
DROP TABLE IF EXISTS achievement_unlocks;
DROP TABLE IF EXISTS user_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE SETUP PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create setup profiles table
-- Version: 002

-- Hardware profile: free-text component descriptions, overwritten
-- wholesale on every save. The score itself lives in user_progress;
-- this table is the source text it was computed from.
CREATE TABLE IF NOT EXISTS setup_profiles (
    user_id VARCHAR(64) PRIMARY KEY REFERENCES user_progress(user_id) ON DELETE CASCADE,
    cpu TEXT NOT NULL DEFAULT '',
    gpu TEXT NOT NULL DEFAULT '',
    ram TEXT NOT NULL DEFAULT '',
    storage TEXT NOT NULL DEFAULT '',
    monitor TEXT NOT NULL DEFAULT '',
    motherboard TEXT NOT NULL DEFAULT '',
    cooling TEXT NOT NULL DEFAULT '',
    saved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration002Down = `
DROP TABLE IF EXISTS setup_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE MISSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create mission completion and proof tables
-- Version: 003

-- Mission completions. The unique constraint is the arbiter of
-- "once per period": period_start identifies the daily or weekly window.
CREATE TABLE IF NOT EXISTS mission_completions (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES user_progress(user_id) ON DELETE CASCADE,
    mission_id VARCHAR(50) NOT NULL,
    period VARCHAR(10) NOT NULL,
    period_start TIMESTAMP WITH TIME ZONE NOT NULL,
    reward_xp INTEGER NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_period CHECK (period IN ('daily', 'weekly')),
    CONSTRAINT valid_reward CHECK (reward_xp > 0),
    CONSTRAINT uniq_completion_per_period UNIQUE (user_id, mission_id, period_start)
);

CREATE INDEX IF NOT EXISTS idx_completions_user_period ON mission_completions(user_id, period_start);
CREATE INDEX IF NOT EXISTS idx_completions_user_type ON mission_completions(user_id, period);

-- Proof submissions for proof-gated weekly missions. Rows carry their
-- final verdict; a pending row is a crash leftover.
CREATE TABLE IF NOT EXISTS proof_submissions (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES user_progress(user_id) ON DELETE CASCADE,
    mission_id VARCHAR(50) NOT NULL,
    period_start TIMESTAMP WITH TIME ZONE NOT NULL,
    proof TEXT NOT NULL,
    status VARCHAR(10) NOT NULL DEFAULT 'pending',
    verifier_note TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    reviewed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_proof_status CHECK (status IN ('pending', 'accepted', 'rejected'))
);

CREATE INDEX IF NOT EXISTS idx_proofs_user_period ON proof_submissions(user_id, period_start);
CREATE INDEX IF NOT EXISTS idx_proofs_pending ON proof_submissions(user_id, mission_id, period_start) WHERE status = 'pending';
`

const migration003Down = `
DROP TABLE IF EXISTS proof_submissions;
DROP TABLE IF EXISTS mission_completions;
`
