// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique platform user identifier.
type UserID string

// Regular expression for valid user ID format (slug or UUID).
var userIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// IsValid checks if the user ID is valid.
func (u UserID) IsValid() bool {
	return userIDRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// MissionID identifies a catalog mission (e.g. "daily_benchmark").
type MissionID string

// IsValid checks if the mission ID is non-empty and well-formed.
func (m MissionID) IsValid() bool {
	s := string(m)
	return len(s) >= 2 && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation.
func (m MissionID) String() string {
	return string(m)
}

// AchievementID identifies a catalog achievement (e.g. "first_mission").
type AchievementID string

// IsValid checks if the achievement ID is non-empty and well-formed.
func (a AchievementID) IsValid() bool {
	s := string(a)
	return len(s) >= 2 && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation.
func (a AchievementID) String() string {
	return string(a)
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points, the unit of progression currency.
type XP int

const (
	// XP boundaries
	MinXP XP = 0
	MaxXP XP = 10000000 // 10 million XP cap
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds an amount of XP, saturating at MaxXP. The cap bounds
// lifetime totals: once a value reaches MaxXP further additions keep
// it there instead of overflowing the valid range.
func (x XP) Add(amount XP) XP {
	result := x + amount
	if result > MaxXP {
		return MaxXP
	}
	return result
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	x := XP(amount)
	if !x.IsValid() {
		return 0, NewDomainError("shared", "NewXP", ErrValueOutOfRange, "XP out of range")
	}
	return x, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's progression level. New users start at level 0.
type Level int

// IsValid checks if the level is non-negative.
func (l Level) IsValid() bool {
	return l >= 0
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// Title returns a human-readable title for the level band.
func (l Level) Title() string {
	switch {
	case l >= 20:
		return "Lenda do Hardware"
	case l >= 10:
		return "Entusiasta Veterano"
	case l >= 5:
		return "Upgrader"
	case l >= 1:
		return "Iniciante"
	default:
		return "Novato"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Tier Value Object (Setup Score classification)
// ═══════════════════════════════════════════════════════════════════════════

// Tier is the coarse hardware classification derived from the Setup Score.
type Tier string

const (
	TierBronze  Tier = "bronze"
	TierSilver  Tier = "silver"
	TierGold    Tier = "gold"
	TierDiamond Tier = "diamond"
)

// Setup Score thresholds for tier classification.
// These are a documented invariant, consistent across the whole app.
const (
	TierSilverThreshold  = 500
	TierGoldThreshold    = 1500
	TierDiamondThreshold = 3500
)

// IsValid checks if the tier is one of the known values.
func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierDiamond:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t Tier) String() string {
	return string(t)
}

// DisplayName returns the localized display name for the tier.
func (t Tier) DisplayName() string {
	switch t {
	case TierBronze:
		return "Bronze"
	case TierSilver:
		return "Prata"
	case TierGold:
		return "Ouro"
	case TierDiamond:
		return "Diamante"
	default:
		return string(t)
	}
}

// AtLeast reports whether the tier ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.ordinal() >= other.ordinal()
}

func (t Tier) ordinal() int {
	switch t {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierDiamond:
		return 3
	default:
		return 0
	}
}

// TierForScore maps a Setup Score total to its tier.
func TierForScore(score int) Tier {
	switch {
	case score >= TierDiamondThreshold:
		return TierDiamond
	case score >= TierGoldThreshold:
		return TierGold
	case score >= TierSilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object (leaderboard position)
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a 1-based position in the leaderboard. Zero means unranked.
type Rank int

// IsValid checks if the rank is non-negative.
func (r Rank) IsValid() bool {
	return r >= 0
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked reports whether the user has no leaderboard position yet.
func (r Rank) IsUnranked() bool {
	return r == 0
}

// IsTop reports whether the rank is within the top n.
func (r Rank) IsTop(n int) bool {
	return r > 0 && int(r) <= n
}

// Compare returns -1, 0 or 1 comparing this rank with another (lower is better).
func (r Rank) Compare(other Rank) int {
	switch {
	case r < other:
		return -1
	case r > other:
		return 1
	default:
		return 0
	}
}

// NewRank creates a new Rank with validation.
func NewRank(position int) (Rank, error) {
	if position < 0 {
		return 0, NewDomainError("shared", "NewRank", ErrValueOutOfRange, "rank cannot be negative")
	}
	return Rank(position), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Period Value Objects (mission windows)
// ═══════════════════════════════════════════════════════════════════════════

// Period is the recurrence window of a mission.
type Period string

const (
	// PeriodDaily missions reset every day at midnight São Paulo time.
	PeriodDaily Period = "daily"
	// PeriodWeekly missions reset every Monday (ISO-8601 week).
	PeriodWeekly Period = "weekly"
)

// IsValid checks if the period is one of the known values.
func (p Period) IsValid() bool {
	return p == PeriodDaily || p == PeriodWeekly
}

// String returns the string representation.
func (p Period) String() string {
	return string(p)
}

// ParsePeriod parses a string into a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ErrInvalidMissionPeriod
	}
	return p, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Timestamp helpers
// ═══════════════════════════════════════════════════════════════════════════

// Timestamp wraps a time with validation helpers for domain events.
type Timestamp struct {
	t time.Time
}

// NewTimestamp creates a Timestamp for the given time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.UTC()}
}

// NowTimestamp creates a Timestamp for the current time.
func NowTimestamp() Timestamp {
	return Timestamp{t: time.Now().UTC()}
}

// Time returns the underlying time.
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// IsZero reports whether the timestamp is unset.
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

// String returns the RFC3339 representation.
func (ts Timestamp) String() string {
	return ts.t.Format(time.RFC3339)
}

// Format formats the timestamp with the given layout.
func (ts Timestamp) Format(layout string) string {
	return ts.t.Format(layout)
}
