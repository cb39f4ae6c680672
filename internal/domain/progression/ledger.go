package progression

import (
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION LEDGER
// Единственное место в приложении, где начисляется XP и считаются уровни.
// Все остальные модули - только потребители.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger применяет XP-дельты к прогрессу пользователя.
// Ledger - чистая функция над состоянием: принимает агрегат, возвращает
// новый агрегат; персистентность - забота вызывающего.
type Ledger struct{}

// NewLedger создаёт новый Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// ApplyResult содержит результат применения XP.
type ApplyResult struct {
	// Progress - новое состояние прогресса.
	Progress *UserProgress

	// LevelUps - сколько уровней получено за этот вызов (0 и больше).
	LevelUps int

	// OldLevel - уровень до применения.
	OldLevel shared.Level

	// NewLevel - уровень после применения.
	NewLevel shared.Level
}

// LeveledUp возвращает true, если был получен хотя бы один уровень.
func (r *ApplyResult) LeveledUp() bool {
	return r.LevelUps > 0
}

// ApplyXP применяет положительную XP-дельту к прогрессу.
//
// Алгоритм (инвариантный, менять нельзя):
//
//	totalPoints' = totalPoints + delta (с насыщением на shared.MaxXP)
//	xp' = xp + delta
//	while xp' >= порог: xp' -= порог; level'++; порог = LevelThreshold(level')
//
// Переполнение конвертируется в уровни в одном цикле - несколько
// уровней за один вызов разрешены. После применения всегда xp' < порога.
// TotalPoints насыщается на shared.MaxXP: после капа суммарные очки
// фиксируются, а xp внутри уровня и уровни продолжают расти.
// delta <= 0 отклоняется с ErrInvalidXPDelta.
func (l *Ledger) ApplyXP(progress *UserProgress, delta shared.XP) (*ApplyResult, error) {
	if progress == nil {
		return nil, shared.ErrProgressNotFound
	}
	if delta <= 0 {
		return nil, shared.ErrInvalidXPDelta
	}

	next := progress.Clone()
	oldLevel := next.Level

	next.TotalPoints = next.TotalPoints.Add(delta)
	next.XP += delta

	threshold := next.XPToNextLevel
	for next.XP >= threshold {
		next.XP -= threshold
		next.Level++
		threshold = LevelThreshold(next.Level)
	}
	next.XPToNextLevel = threshold
	next.UpdatedAt = time.Now().UTC()

	if err := next.Validate(); err != nil {
		return nil, err
	}

	return &ApplyResult{
		Progress: next,
		LevelUps: int(next.Level - oldLevel),
		OldLevel: oldLevel,
		NewLevel: next.Level,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN STREAKS
// ══════════════════════════════════════════════════════════════════════════════

// LoginResult содержит результат регистрации входа.
type LoginResult struct {
	// Progress - новое состояние прогресса.
	Progress *UserProgress

	// Counted - true, если вход засчитан (первый за день).
	Counted bool

	// StreakBroken - true, если серия была прервана.
	StreakBroken bool

	// PreviousStreak - серия до прерывания (если StreakBroken).
	PreviousStreak int

	// PreviousLoginAt - время предыдущего засчитанного входа
	// (нулевое время для первого входа).
	PreviousLoginAt time.Time
}

// RecordLogin регистрирует вход пользователя и обновляет серию дней.
// Повторный вход в тот же день - no-op. Пропуск хотя бы одного дня
// прерывает серию и начинает новую с единицы.
func (l *Ledger) RecordLogin(progress *UserProgress, at time.Time) (*LoginResult, error) {
	if progress == nil {
		return nil, shared.ErrProgressNotFound
	}

	next := progress.Clone()
	result := &LoginResult{Progress: next, PreviousLoginAt: next.LastLoginAt}

	if !next.LastLoginAt.IsZero() && timeutil.IsSameDay(next.LastLoginAt, at) {
		return result, nil
	}

	switch {
	case next.LastLoginAt.IsZero():
		next.CurrentStreak = 1
	case timeutil.IsConsecutiveDay(next.LastLoginAt, at):
		next.CurrentStreak++
	default:
		result.StreakBroken = true
		result.PreviousStreak = next.CurrentStreak
		next.CurrentStreak = 1
	}

	if next.CurrentStreak > next.BestStreak {
		next.BestStreak = next.CurrentStreak
	}

	next.LastLoginAt = at.UTC()
	next.UpdatedAt = time.Now().UTC()
	result.Counted = true

	return result, nil
}
