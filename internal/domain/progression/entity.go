// Package progression содержит доменную модель прогресса пользователя UPGRD.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package progression

import (
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVELING RULES
// Единственная каноническая таблица уровней во всём приложении.
// ══════════════════════════════════════════════════════════════════════════════

// BaseLevelThreshold - XP, необходимый для перехода с уровня 0 на уровень 1.
const BaseLevelThreshold = 1000

// LevelThresholdStep - прирост порога за каждый уровень.
const LevelThresholdStep = 1000

// LevelThreshold возвращает XP, необходимый для перехода с уровня level
// на уровень level+1. Формула линейная: 1000 + level*1000.
func LevelThreshold(level shared.Level) shared.XP {
	if level < 0 {
		level = 0
	}
	return shared.XP(BaseLevelThreshold + level.Int()*LevelThresholdStep)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress - агрегат прогресса одного пользователя.
// Инварианты:
//   - XP всегда строго меньше XPToNextLevel;
//   - TotalPoints монотонно не убывает;
//   - запись создаётся один раз и никогда не удаляется.
type UserProgress struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// DisplayName - отображаемое имя (для лидерборда).
	DisplayName string

	// Level - текущий уровень (от 0).
	Level shared.Level

	// XP - накопленный XP внутри текущего уровня.
	XP shared.XP

	// XPToNextLevel - порог XP для перехода на следующий уровень.
	XPToNextLevel shared.XP

	// TotalPoints - суммарный XP за всё время (никогда не уменьшается).
	TotalPoints shared.XP

	// SetupScore - последний рассчитанный Setup Score.
	SetupScore int

	// Achievements - ID разблокированных достижений.
	Achievements map[shared.AchievementID]time.Time

	// CurrentStreak - текущая серия дней входа подряд.
	CurrentStreak int

	// BestStreak - лучшая серия дней входа.
	BestStreak int

	// LastLoginAt - время последнего засчитанного входа.
	LastLoginAt time.Time

	// Version - версия записи для оптимистичной блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewUserProgress создаёт запись прогресса для нового пользователя.
// Стартовые значения: уровень 0, 0 XP, порог 1000.
func NewUserProgress(userID shared.UserID, displayName string) *UserProgress {
	now := time.Now().UTC()
	return &UserProgress{
		UserID:        userID,
		DisplayName:   displayName,
		Level:         0,
		XP:            0,
		XPToNextLevel: LevelThreshold(0),
		TotalPoints:   0,
		SetupScore:    0,
		Achievements:  make(map[shared.AchievementID]time.Time),
		CurrentStreak: 0,
		BestStreak:    0,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate проверяет инварианты агрегата.
func (p *UserProgress) Validate() error {
	if !p.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if p.Level < 0 || p.XP < 0 || p.TotalPoints < 0 {
		return shared.NewDomainError("progression", "Validate", shared.ErrNegativeValue, "negative progression value")
	}
	if p.XPToNextLevel <= 0 {
		return shared.NewDomainError("progression", "Validate", shared.ErrValueOutOfRange, "xpToNextLevel must be positive")
	}
	if p.XP >= p.XPToNextLevel {
		return shared.NewDomainError("progression", "Validate", shared.ErrInvalidState, "xp must stay below xpToNextLevel")
	}
	return nil
}

// HasAchievement проверяет, разблокировано ли достижение.
func (p *UserProgress) HasAchievement(id shared.AchievementID) bool {
	_, ok := p.Achievements[id]
	return ok
}

// UnlockAchievement отмечает достижение как разблокированное.
// Возвращает false, если оно уже было разблокировано (повторный вызов - no-op).
func (p *UserProgress) UnlockAchievement(id shared.AchievementID, at time.Time) bool {
	if p.Achievements == nil {
		p.Achievements = make(map[shared.AchievementID]time.Time)
	}
	if _, ok := p.Achievements[id]; ok {
		return false
	}
	p.Achievements[id] = at.UTC()
	return true
}

// ProgressPercent возвращает процент заполнения текущего уровня (0-100).
func (p *UserProgress) ProgressPercent() int {
	if p.XPToNextLevel <= 0 {
		return 0
	}
	return int(p.XP) * 100 / int(p.XPToNextLevel)
}

// Clone возвращает глубокую копию агрегата.
// Ledger работает с копиями: состояние на входе, состояние на выходе.
func (p *UserProgress) Clone() *UserProgress {
	clone := *p
	clone.Achievements = make(map[shared.AchievementID]time.Time, len(p.Achievements))
	for id, at := range p.Achievements {
		clone.Achievements[id] = at
	}
	return &clone
}
