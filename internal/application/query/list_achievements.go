package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/progression"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACHIEVEMENTS QUERY
// Возвращает каталог достижений с отметкой разблокированных.
// Неизвестный пользователь получает каталог без разблокировок.
// ══════════════════════════════════════════════════════════════════════════════

// ListAchievementsQuery содержит параметры запроса достижений.
type ListAchievementsQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// OnlyUnlocked - возвращать только разблокированные.
	OnlyUnlocked bool
}

// Validate проверяет корректность параметров запроса.
func (q *ListAchievementsQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// AchievementDTO - DTO достижения.
type AchievementDTO struct {
	// ID - идентификатор достижения.
	ID string `json:"id"`

	// Name - название достижения.
	Name string `json:"name"`

	// Description - условие получения.
	Description string `json:"description"`

	// Bonus - бонус XP при разблокировке.
	Bonus int `json:"bonus"`

	// Unlocked - разблокировано ли.
	Unlocked bool `json:"unlocked"`

	// UnlockedAt - время разблокировки (если разблокировано).
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// ListAchievementsResult содержит результат запроса достижений.
type ListAchievementsResult struct {
	// Achievements - достижения каталога.
	Achievements []AchievementDTO `json:"achievements"`

	// UnlockedCount - количество разблокированных.
	UnlockedCount int `json:"unlocked_count"`

	// TotalCount - общее количество достижений в каталоге.
	TotalCount int `json:"total_count"`
}

// ListAchievementsHandler обрабатывает ListAchievementsQuery.
type ListAchievementsHandler struct {
	catalog      *achievement.Catalog
	progressRepo progression.Repository
}

// NewListAchievementsHandler создаёт новый ListAchievementsHandler.
func NewListAchievementsHandler(
	catalog *achievement.Catalog,
	progressRepo progression.Repository,
) *ListAchievementsHandler {
	return &ListAchievementsHandler{
		catalog:      catalog,
		progressRepo: progressRepo,
	}
}

// Handle выполняет запрос достижений.
func (h *ListAchievementsHandler) Handle(ctx context.Context, q ListAchievementsQuery) (*ListAchievementsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list_achievements: %w", err)
	}

	unlockedAt := make(map[shared.AchievementID]time.Time)
	progress, err := h.progressRepo.GetByUserID(ctx, shared.UserID(q.UserID))
	if err == nil {
		unlockedAt = progress.Achievements
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("list_achievements: %w", err)
	}

	defs := h.catalog.All()
	result := &ListAchievementsResult{
		Achievements: make([]AchievementDTO, 0, len(defs)),
		TotalCount:   len(defs),
	}

	for _, def := range defs {
		at, unlocked := unlockedAt[def.ID]
		if q.OnlyUnlocked && !unlocked {
			continue
		}

		dto := AchievementDTO{
			ID:          def.ID.String(),
			Name:        def.Name,
			Description: def.Description,
			Bonus:       def.Bonus.Int(),
			Unlocked:    unlocked,
		}
		if unlocked {
			unlockTime := at
			dto.UnlockedAt = &unlockTime
			result.UnlockedCount++
		}
		result.Achievements = append(result.Achievements, dto)
	}

	return result, nil
}
